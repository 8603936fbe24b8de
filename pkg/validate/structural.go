package validate

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"spiral/pkg/ir"
)

// structuralValidate is a singleton go-playground/validator/v10 instance
// carrying the two custom rules §4.3 needs beyond its built-ins:
// "semver" (major.minor.patch) and "identifier" ([A-Za-z_][A-Za-z0-9_]*).
// It backs the purely-structural half of the validator (§10.4): required-
// field presence, identifier grammar, version format. Cross-referential
// checks (node-id resolution, acyclicity, phi/terminator targets) stay
// hand-written graph algorithms, the way the teacher's own BuildDAG/
// TopologicalSort are — no struct-tag library expresses "this id must
// resolve to a node of the right kind".
var (
	structuralOnce sync.Once
	structural     *validator.Validate
)

func getStructuralValidator() *validator.Validate {
	structuralOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return versionRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierRe.MatchString(fl.Field().String())
		})
		structural = v
	})
	return structural
}

// docShape is the purely-structural half of a Document: the fields
// validator/v10 can check with tags alone, independent of any
// cross-reference into Nodes/Defs.
type docShape struct {
	Version string `validate:"required,semver"`
	Result  string `validate:"required,identifier"`
}

// defShape is the structural half of a single Definition.
type defShape struct {
	Namespace string `validate:"required,identifier"`
	Name      string `validate:"required,identifier"`
}

// checkStructural runs the struct-tag layer over doc and its definitions,
// appending any violation as a path-carrying diagnostic. It repeats
// checkVersion's version-format check and checkDefinitions' namespace/name
// identifier checks — both layers check the same rule through different
// code paths on purpose, since go-playground/validator/v10 is the library contributing
// this half of §4.3 rather than a hand-rolled regex check standing alone.
func (c *collector) checkStructural(doc *ir.Document) {
	v := getStructuralValidator()

	if err := v.Struct(docShape{Version: doc.Version, Result: doc.Result}); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			c.add("/"+fe.Field(), "struct-tag validation failed: %s", fe.Tag())
		}
	}

	for i, d := range doc.Defs {
		if err := v.Struct(defShape{Namespace: d.Namespace, Name: d.Name}); err != nil {
			for _, fe := range err.(validator.ValidationErrors) {
				c.add(fmt.Sprintf("/defs/%d/%s", i, fe.Field()), "struct-tag validation failed: %s", fe.Tag())
			}
		}
	}
}
