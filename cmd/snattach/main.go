// snattach uploads files as attachments to ServiceNow records.
//
// # Usage
//
//	snattach upload --table incident --sys-id <sys_id> --file report.xlsx
//	snattach watch  --config snattach.yaml
//	snattach version
//
// Credentials are resolved from exactly one of three sources, in order:
//
//  1. An automation connection: JSON in the SNATTACH_CONNECTION environment
//     variable with keys Username, Password, ServiceNowUri.
//  2. An explicit credential and host from flags or the config file.
//  3. Auth state stored earlier in the process (library embedding only).
//
// When none of them resolves, the command fails before any network call.
package main

import (
	"os"

	"github.com/aberwag/snattach/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
