package app

import (
	"log"
	"mime"
)

// Minimal container images ship without /etc/mime.types, which would
// leave the stylesheet served as application/octet-stream.
func init() {
	if mime.TypeByExtension(".css") != "" {
		return
	}
	if err := mime.AddExtensionType(".css", "text/css; charset=utf-8"); err != nil {
		log.Printf("app: register .css MIME type: %v", err)
	}
}
