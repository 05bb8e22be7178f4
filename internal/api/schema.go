package api

import (
	"net/http"
	"reflect"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"passthru_parser/internal/passthru"
)

// ExpressionSetSchema returns the JSON schema of the documents served by
// /sets/{id}.
func ExpressionSetSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper:                    mapStringTypes,
	}
	return reflector.Reflect(&passthru.ExpressionSet{})
}

// mapStringTypes describes types whose JSON form is a string rather than
// their Go representation.
func mapStringTypes(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeOf(passthru.CommandKind(0)):
		var names []any
		for _, k := range passthru.Kinds() {
			names = append(names, k.String())
		}
		return &jsonschema.Schema{Type: "string", Enum: names}
	case reflect.TypeOf(passthru.ValidationState(0)):
		return &jsonschema.Schema{Type: "string", Enum: []any{passthru.Valid.String(), passthru.Invalid.String()}}
	case reflect.TypeOf(uuid.UUID{}):
		return &jsonschema.Schema{Type: "string", Format: "uuid"}
	}
	return nil
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ExpressionSetSchema())
}
