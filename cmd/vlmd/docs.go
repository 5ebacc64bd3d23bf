package main

// General API documentation for swaggo. Regenerate docs/ with `swag init -g cmd/vlmd/docs.go`.
//
// @title           vlmd API
// @version         1.0
// @description     Control endpoint for a video stream narrated by a remote vision-language model.
//
// @contact.name   vlmd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
