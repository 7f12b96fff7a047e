package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-playground/validator/v10"

	apperrors "compact-connect-backend/internal/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	// attribute specs per record struct type
	specCache sync.Map
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("dynamodbav"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		// enum accepts any field type exposing IsValid.
		_ = validate.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			v, ok := fl.Field().Interface().(interface{ IsValid() bool })
			return ok && v.IsValid()
		})
	})
	return validate
}

type attributeSpec struct {
	name     string
	required bool
}

// attributeSpecs lists the stored attributes of a record struct. An
// attribute is required exactly when it is marshalled without omitempty,
// which keeps ToItem and the strict decoder in agreement.
func attributeSpecs(t reflect.Type) []attributeSpec {
	if cached, ok := specCache.Load(t); ok {
		return cached.([]attributeSpec)
	}

	var specs []attributeSpec
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		opts := strings.Split(f.Tag.Get("dynamodbav"), ",")
		name := opts[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		spec := attributeSpec{name: name, required: true}
		for _, opt := range opts[1:] {
			if opt == "omitempty" {
				spec.required = false
			}
		}
		specs = append(specs, spec)
	}

	specCache.Store(t, specs)
	return specs
}

// recordLayout describes the attributes of a record type that are not struct fields.
type recordLayout struct {
	recordType RecordType
	// keys are required and consumed by the record's decoder.
	keys []string
	// ignored attributes are tolerated on read and dropped.
	ignored []string
}

func integrityError(rt RecordType, details string, cause error) error {
	return apperrors.Internal(apperrors.CodeDataIntegrity, apperrors.GenericInternalMessage).
		WithResource(string(rt)).
		WithDetails(details).
		WithCause(cause).
		Build()
}

func absent(av types.AttributeValue) bool {
	if av == nil {
		return true
	}
	_, isNull := av.(*types.AttributeValueMemberNULL)
	return isNull
}

// stringAttr returns a string attribute or "" when it is missing or not a string.
func stringAttr(item map[string]types.AttributeValue, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// decodeRecord strictly decodes item into out, a pointer to a record struct.
// Errors name attributes but never carry their values.
func decodeRecord(item map[string]types.AttributeValue, layout recordLayout, out any) error {
	rt := layout.recordType
	if stringAttr(item, AttrType) != string(rt) {
		return integrityError(rt, "type attribute does not match record type", nil)
	}

	specs := attributeSpecs(reflect.TypeOf(out).Elem())
	known := make(map[string]bool, len(specs)+len(layout.keys)+len(layout.ignored)+1)
	known[AttrType] = true
	for _, s := range specs {
		known[s.name] = true
	}
	for _, k := range layout.keys {
		known[k] = true
	}
	for _, k := range layout.ignored {
		known[k] = true
	}

	var unexpected []string
	for name := range item {
		if !known[name] {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return integrityError(rt, "unexpected attributes: "+strings.Join(unexpected, ", "), nil)
	}

	var missing []string
	for _, k := range layout.keys {
		if absent(item[k]) {
			missing = append(missing, k)
		}
	}
	fields := make(map[string]types.AttributeValue, len(specs))
	for _, s := range specs {
		av, ok := item[s.name]
		if s.required && absent(av) {
			missing = append(missing, s.name)
			continue
		}
		if ok {
			fields[s.name] = av
		}
	}
	if len(missing) > 0 {
		return integrityError(rt, "missing required attributes: "+strings.Join(missing, ", "), nil)
	}

	if err := attributevalue.UnmarshalMap(fields, out); err != nil {
		return integrityError(rt, "attribute has the wrong type", err)
	}
	return nil
}

// checkDecoded runs field validation on a decoded record.
func checkDecoded(rt RecordType, record any) error {
	if failed := invalidFields(record); failed != "" {
		return integrityError(rt, "invalid attributes: "+failed, nil)
	}
	return nil
}

// invalidFields returns a description of every field failing its validate tag.
func invalidFields(record any) string {
	err := recordValidator().Struct(record)
	if err == nil {
		return ""
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(names, ", ")
}

// encodeRecord validates and marshals a record, then adds its key attributes.
func encodeRecord(rt RecordType, record any, keys map[string]string) (map[string]types.AttributeValue, error) {
	if failed := invalidFields(record); failed != "" {
		return nil, apperrors.Validation(apperrors.CodeInvalidRequest, "invalid "+string(rt)+" record").
			WithResource(string(rt)).
			WithDetails(failed).
			Build()
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, apperrors.Internal(apperrors.CodeSerialization, "failed to marshal record").
			WithResource(string(rt)).
			WithCause(err).
			Build()
	}

	for name, value := range keys {
		item[name] = &types.AttributeValueMemberS{Value: value}
	}
	item[AttrType] = &types.AttributeValueMemberS{Value: string(rt)}
	return item, nil
}
