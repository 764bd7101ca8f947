package app

// FormatAngle exposes formatAngle for tests.
var FormatAngle = formatAngle

// DatasetsOf exposes datasetsOf for tests.
var DatasetsOf = datasetsOf
