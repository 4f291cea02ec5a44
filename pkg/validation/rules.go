// Package validation compiles the declarative field rules of a form and
// checks values against them.
package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

const (
	MessageRequired = "This field is required."
	sumTolerance    = 1e-9
)

var (
	ErrInvalidRule = errors.New("validation: invalid rule")

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneDigits  = regexp.MustCompile(`\d`)
	phoneChars   = regexp.MustCompile(`^[0-9+()\-.\s]+$`)
)

// FieldError is a failed check on one visible field.
type FieldError struct {
	Path    string
	Rule    string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Path, e.Message)
}

// Rules is the compiled rule set of one field definition.
type Rules struct {
	field   model.Field
	min     *float64
	max     *float64
	minLen  *int
	maxLen  *int
	pattern *regexp.Regexp
	message string
	enum    map[string]struct{}
	options map[string]struct{}
	sum     *sumRule
}

type sumRule struct {
	fields []string
	equals float64
}

// Compile turns the field's declarative rules into Rules. Bad parameters
// and invalid regular expressions are reported as ErrInvalidRule.
func Compile(field model.Field) (Rules, error) {
	rules := Rules{field: field}
	if len(field.Options) > 0 {
		rules.options = make(map[string]struct{}, len(field.Options))
		for _, opt := range field.Options {
			rules.options[opt.Value] = struct{}{}
		}
	}

	for _, rule := range field.Validations {
		switch rule.Kind {
		case model.ValidationRuleMin, model.ValidationRuleMax:
			val, err := strconv.ParseFloat(strings.TrimSpace(rule.Params["value"]), 64)
			if err != nil {
				return Rules{}, invalid(field, rule, "value must be numeric")
			}
			if rule.Kind == model.ValidationRuleMin {
				rules.min = &val
			} else {
				rules.max = &val
			}
		case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
			val, err := strconv.Atoi(strings.TrimSpace(rule.Params["value"]))
			if err != nil || val < 0 {
				return Rules{}, invalid(field, rule, "value must be a non-negative integer")
			}
			if rule.Kind == model.ValidationRuleMinLength {
				rules.minLen = &val
			} else {
				rules.maxLen = &val
			}
		case model.ValidationRulePattern:
			expr := rule.Params["pattern"]
			if expr == "" {
				return Rules{}, invalid(field, rule, "pattern is empty")
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return Rules{}, invalid(field, rule, err.Error())
			}
			rules.pattern = re
			rules.message = rule.Params["message"]
		case model.ValidationRuleEnum:
			values := splitList(rule.Params["values"])
			if len(values) == 0 {
				return Rules{}, invalid(field, rule, "values are empty")
			}
			rules.enum = make(map[string]struct{}, len(values))
			for _, v := range values {
				rules.enum[v] = struct{}{}
			}
		case model.ValidationRuleSum:
			fields := splitList(rule.Params["fields"])
			if len(fields) == 0 {
				return Rules{}, invalid(field, rule, "fields are empty")
			}
			equals := 100.0
			if raw := strings.TrimSpace(rule.Params["equals"]); raw != "" {
				val, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return Rules{}, invalid(field, rule, "equals must be numeric")
				}
				equals = val
			}
			rules.sum = &sumRule{fields: fields, equals: equals}
		default:
			return Rules{}, invalid(field, rule, "unknown rule kind")
		}
	}
	return rules, nil
}

func invalid(field model.Field, rule model.ValidationRule, detail string) error {
	return fmt.Errorf("%w: field %q %s: %s", ErrInvalidRule, field.Key, rule.Kind, detail)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SumFields returns the paths read by the field's sum rule.
func (r Rules) SumFields() []string {
	if r.sum == nil {
		return nil
	}
	return append([]string(nil), r.sum.fields...)
}

// Check validates value for the field at path. Empty values fail only when
// required; a required boolean must be true. values is the whole form state,
// read by cross-field rules.
func (r Rules) Check(path string, value any, required bool, values map[string]any) *FieldError {
	if r.field.Type == model.FieldTypeSynthetic {
		return r.checkSum(path, values)
	}

	if r.field.Type == model.FieldTypeBoolean && required {
		if b, ok := asBool(value); !ok || !b {
			return &FieldError{Path: path, Rule: "required", Message: MessageRequired}
		}
		return nil
	}

	if model.IsEmpty(value) {
		if required {
			return &FieldError{Path: path, Rule: "required", Message: MessageRequired}
		}
		return nil
	}

	if err := r.checkType(path, value); err != nil {
		return err
	}
	return r.checkRules(path, value)
}

func (r Rules) checkType(path string, value any) *FieldError {
	fail := func(msg string) *FieldError {
		return &FieldError{Path: path, Rule: string(r.field.Type), Message: msg}
	}
	switch r.field.Type {
	case model.FieldTypeEmail:
		if !emailPattern.MatchString(strings.TrimSpace(toString(value))) {
			return fail("Enter a valid email address.")
		}
	case model.FieldTypePhone:
		raw := strings.TrimSpace(toString(value))
		if !phoneChars.MatchString(raw) || len(phoneDigits.FindAllString(raw, -1)) < 10 {
			return fail("Enter a valid phone number.")
		}
	case model.FieldTypeDate:
		if _, ok := value.(time.Time); ok {
			return nil
		}
		if _, err := time.Parse(DateLayout, strings.TrimSpace(toString(value))); err != nil {
			return fail("Enter a valid date (YYYY-MM-DD).")
		}
	case model.FieldTypeNumber:
		if _, ok := model.ToNumber(value); !ok {
			return fail("Enter a number.")
		}
	case model.FieldTypeBoolean:
		if _, ok := asBool(value); !ok {
			return fail("Choose yes or no.")
		}
	case model.FieldTypeEnum:
		if r.options != nil {
			if _, ok := r.options[toString(value)]; !ok {
				return fail("Choose one of the listed options.")
			}
		}
	case model.FieldTypeMulti:
		if r.options != nil {
			for _, v := range toStrings(value) {
				if _, ok := r.options[v]; !ok {
					return fail(fmt.Sprintf("%q is not one of the listed options.", v))
				}
			}
		}
	}
	return nil
}

func (r Rules) checkRules(path string, value any) *FieldError {
	if r.min != nil || r.max != nil {
		n, ok := model.ToNumber(value)
		if !ok {
			return &FieldError{Path: path, Rule: model.ValidationRuleMin, Message: "Enter a number."}
		}
		if r.min != nil && n < *r.min {
			return &FieldError{Path: path, Rule: model.ValidationRuleMin, Message: fmt.Sprintf("Must be at least %s.", formatNumber(*r.min))}
		}
		if r.max != nil && n > *r.max {
			return &FieldError{Path: path, Rule: model.ValidationRuleMax, Message: fmt.Sprintf("Must be at most %s.", formatNumber(*r.max))}
		}
	}

	length := lengthOf(value)
	if r.minLen != nil && length < *r.minLen {
		return &FieldError{Path: path, Rule: model.ValidationRuleMinLength, Message: fmt.Sprintf("Must be at least %d characters.", *r.minLen)}
	}
	if r.maxLen != nil && length > *r.maxLen {
		return &FieldError{Path: path, Rule: model.ValidationRuleMaxLength, Message: fmt.Sprintf("Must be at most %d characters.", *r.maxLen)}
	}

	if r.pattern != nil && !r.pattern.MatchString(toString(value)) {
		msg := r.message
		if msg == "" {
			msg = "Invalid format."
		}
		return &FieldError{Path: path, Rule: model.ValidationRulePattern, Message: msg}
	}

	if r.enum != nil {
		for _, v := range toStrings(value) {
			if _, ok := r.enum[v]; !ok {
				return &FieldError{Path: path, Rule: model.ValidationRuleEnum, Message: "Choose one of the listed options."}
			}
		}
	}
	return nil
}

// checkSum adds up the referenced paths. A path naming an object sums its
// children, so "productionMix" covers every percentage inside it.
func (r Rules) checkSum(path string, values map[string]any) *FieldError {
	if r.sum == nil {
		return nil
	}
	var total float64
	for _, p := range r.sum.fields {
		v, ok := model.Lookup(values, p)
		if !ok {
			continue
		}
		if obj, ok := v.(map[string]any); ok {
			for _, child := range obj {
				if n, ok := model.ToNumber(child); ok {
					total += n
				}
			}
			continue
		}
		if n, ok := model.ToNumber(v); ok {
			total += n
		}
	}
	if math.Abs(total-r.sum.equals) > sumTolerance {
		return &FieldError{
			Path:    path,
			Rule:    model.ValidationRuleSum,
			Message: fmt.Sprintf("Must add up to %s (currently %s).", formatNumber(r.sum.equals), formatNumber(total)),
		}
	}
	return nil
}

func asBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on":
			return true, true
		case "false", "no", "off":
			return false, true
		}
	}
	return false, false
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case model.FileRef:
		return v.Name
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toStrings(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, toString(item))
		}
		return out
	default:
		return []string{toString(value)}
	}
}

func lengthOf(value any) int {
	switch v := value.(type) {
	case []any:
		return len(v)
	case []string:
		return len(v)
	default:
		return utf8.RuneCountInString(toString(value))
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
