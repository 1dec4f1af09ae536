// Package docs registers the API description served under /swagger.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed swagger.json
var doc string

type apiDoc struct{}

func (apiDoc) ReadDoc() string { return doc }

func init() {
	swag.Register(swag.Name, apiDoc{})
}
