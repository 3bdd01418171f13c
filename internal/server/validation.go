package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/store"
)

var registerOnce sync.Once

// registerValidations installs the custom rules on gin's validator engine and
// reports fields by their query/json name.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
		_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
			_, err := event.ParseTime(fl.Field().String())
			return err == nil
		})
	})
}

// bindingMessage turns a binding error into a caller facing message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "timestamp":
			return fmt.Sprintf("Invalid %s format", fe.Field())
		case "required":
			return fmt.Sprintf("Missing %s", fe.Field())
		}
		return fmt.Sprintf("Invalid %s", fe.Field())
	}
	return "Invalid query parameters"
}

func (q searchQuery) toStore() store.Query {
	out := store.Query{
		Name:      q.Name,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Page:      q.Page,
		Limit:     q.Limit,
	}
	// both values passed the timestamp rule
	if t, err := event.ParseTime(q.StartDateAfter); err == nil {
		out.StartAfter = &t
	}
	if t, err := event.ParseTime(q.EndDateBefore); err == nil {
		out.EndBefore = &t
	}
	return out
}
