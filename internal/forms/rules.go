// Package forms turns stored form definitions into per-request validation
// rules. Rules are built fresh for every submission from the field list, the
// kind of operation and the answers already on record.
package forms

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/tidwall/gjson"
)

// MaxUploadSize bounds a single file answer.
const MaxUploadSize = 10 << 20

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
}

var validate = validator.New()

type Operation int

const (
	OpCreate Operation = iota
	OpUpdate
)

type Shape string

const (
	ShapeText   Shape = "text"
	ShapeEmail  Shape = "email"
	ShapeNumber Shape = "number"
	ShapeDate   Shape = "date"
	ShapeChoice Shape = "choice"
	ShapeFile   Shape = "file"
	ShapeImage  Shape = "image"
)

// Rule is the check applied to one field's answer.
type Rule struct {
	Key      string
	FieldID  uuid.UUID
	Label    string
	Required bool
	Shape    Shape
	Options  []string
	Multiple bool
}

// RuleSet is ordered like the fields it was built from.
type RuleSet []Rule

// BuildRules derives the rule set for a submission. existing maps field ids to
// the value currently stored for them and is only consulted on OpUpdate, where
// an upload field that already holds a file stops being required.
func BuildRules(fields []models.FormField, op Operation, existing map[uuid.UUID]string) RuleSet {
	rules := make(RuleSet, 0, len(fields))
	for _, f := range fields {
		rule := Rule{
			Key:      f.Key(),
			FieldID:  f.ID,
			Label:    f.Label,
			Required: f.IsRequired,
			Shape:    shapeFor(f.Type),
		}
		if f.Type.IsChoice() {
			rule.Options = ParseOptions(f.Options)
			rule.Multiple = f.Type == models.FieldCheckbox
		}
		if op == OpUpdate && f.Type.IsUpload() && existing[f.ID] != "" {
			rule.Required = false
		}
		rules = append(rules, rule)
	}
	return rules
}

func shapeFor(t models.FieldType) Shape {
	switch t {
	case models.FieldFile:
		return ShapeFile
	case models.FieldImage:
		return ShapeImage
	case models.FieldEmail:
		return ShapeEmail
	case models.FieldNumber:
		return ShapeNumber
	case models.FieldDate:
		return ShapeDate
	case models.FieldDropdown, models.FieldRadio, models.FieldCheckbox:
		return ShapeChoice
	}
	return ShapeText
}

// ParseOptions reads the allowed values of a choice field. Options are stored
// either as a list of strings or as a list of {label, value} objects.
func ParseOptions(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	res := gjson.ParseBytes(raw)
	if !res.IsArray() {
		return nil
	}
	var out []string
	res.ForEach(func(_, v gjson.Result) bool {
		switch {
		case v.IsObject() && v.Get("value").Exists():
			out = append(out, v.Get("value").String())
		case v.IsObject():
			out = append(out, v.Get("label").String())
		default:
			out = append(out, v.String())
		}
		return true
	})
	return out
}

// Input is one submission as read off the request. A key present in Values
// was sent, even if empty; Files holds uploaded parts by key.
type Input struct {
	Values map[string]string
	Files  map[string]*multipart.FileHeader
}

// Provided reports whether the request carried anything for key.
func (in Input) Provided(key string) bool {
	if _, ok := in.Values[key]; ok {
		return true
	}
	_, ok := in.Files[key]
	return ok
}

// Validate checks in against every rule and returns messages keyed by field key.
func (rs RuleSet) Validate(in Input) map[string]string {
	errs := make(map[string]string)
	for _, r := range rs {
		if msg := r.check(in); msg != "" {
			errs[r.Key] = msg
		}
	}
	return errs
}

func (r Rule) check(in Input) string {
	if r.Shape == ShapeFile || r.Shape == ShapeImage {
		return r.checkUpload(in)
	}

	value := strings.TrimSpace(in.Values[r.Key])
	if value == "" {
		if r.Required {
			return fmt.Sprintf("The %s field is required.", r.Label)
		}
		return ""
	}

	switch r.Shape {
	case ShapeEmail:
		if validate.Var(value, "email") != nil {
			return fmt.Sprintf("The %s field must be a valid email address.", r.Label)
		}
	case ShapeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("The %s field must be a number.", r.Label)
		}
	case ShapeDate:
		if !isDate(value) {
			return fmt.Sprintf("The %s field must be a valid date.", r.Label)
		}
	case ShapeChoice:
		if !r.allows(value) {
			return fmt.Sprintf("The selected %s is invalid.", r.Label)
		}
	}
	return ""
}

func (r Rule) checkUpload(in Input) string {
	fh := in.Files[r.Key]
	if fh == nil {
		if strings.TrimSpace(in.Values[r.Key]) != "" {
			return fmt.Sprintf("The %s field must be a file.", r.Label)
		}
		if r.Required {
			return fmt.Sprintf("The %s field is required.", r.Label)
		}
		return ""
	}
	if fh.Size > MaxUploadSize {
		return fmt.Sprintf("The %s field must not be greater than %d kilobytes.", r.Label, MaxUploadSize>>10)
	}
	if r.Shape == ShapeImage && !imageExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
		return fmt.Sprintf("The %s field must be an image.", r.Label)
	}
	return ""
}

func (r Rule) allows(value string) bool {
	if len(r.Options) == 0 {
		return true
	}
	candidates := []string{value}
	if r.Multiple {
		candidates = strings.Split(value, ",")
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		found := false
		for _, opt := range r.Options {
			if opt == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func isDate(value string) bool {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// CheckImage applies the image upload rule to a file outside any form, such
// as an avatar or project thumbnail.
func CheckImage(label string, fh *multipart.FileHeader) string {
	r := Rule{Key: "file", Label: label, Required: true, Shape: ShapeImage}
	return r.checkUpload(Input{Files: map[string]*multipart.FileHeader{"file": fh}})
}
