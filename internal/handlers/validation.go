package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/yukikurage/habit-tracker-api/internal/errors"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator.
// It is safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.Split(f.Tag.Get(tag), ",")[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})

		err = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			return utils.IsDate(fl.Field().String())
		})
	})
	return err
}

// respondBindError maps a binding failure onto the validation error taxonomy.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		apierrors.BadRequest(c, "Invalid request")
		return
	}

	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}

	first := verrs[0]
	switch first.Tag() {
	case "required":
		apierrors.RespondWithError(c, http.StatusBadRequest, apierrors.NewAPIErrorWithDetails(
			apierrors.ErrCodeMissingField, fmt.Sprintf("%s is required", first.Field()), details))
	case "isodate":
		apierrors.RespondWithError(c, http.StatusBadRequest, apierrors.NewAPIErrorWithDetails(
			apierrors.ErrCodeInvalidFormat, fmt.Sprintf("%s must be formatted as YYYY-MM-DD", first.Field()), details))
	default:
		apierrors.BadRequestWithDetails(c, fmt.Sprintf("%s is invalid", first.Field()), details)
	}
}

// parseIDParam reads a positive integer path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.InvalidFormat(c, fmt.Sprintf("Invalid %s", name))
		return 0, false
	}
	return id, true
}

// parseIDList parses a comma-separated list of IDs such as "1,2,3".
func parseIDList(raw string) ([]uint64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
