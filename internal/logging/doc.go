// Package logging configures structured logging for ServiceReport.
// Every run writes JSON records to a rotating file under
// /var/log/servicereport; console output is plain text whose level
// follows the -v and -q flags.
package logging
