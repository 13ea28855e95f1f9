package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/model"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator はnotblankタグを登録したvalidatorを生成する。
// notblankは空白のみの文字列を拒否するが、値そのものは書き換えない。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// decodeAndValidate はJSONボディをdstにデコードし、structタグで検証する。
// 受け取った値は書き換えない。失敗時はINVALID_ARGUMENTのAPIErrorを返す。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewInvalidArgumentError("request body is required")
		}
		return model.NewInvalidArgumentError("request body must be valid JSON")
	}

	if err := validate.Struct(dst); err != nil {
		return model.NewInvalidArgumentError(describeValidationError(err))
	}
	return nil
}

// describeValidationError はvalidatorのエラーを利用者向けの短い説明に変換する。
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "notblank":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(parts, ", ")
}

func jsonEncode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
