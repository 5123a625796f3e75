package records

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/johnwards/stagetrack/internal/api"
	"github.com/johnwards/stagetrack/internal/pipeline"
)

type createRequest struct {
	Fields map[string]any `json:"fields" validate:"required"`
	Status string         `json:"status"`
}

type updateRequest struct {
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type checklistRequest struct {
	ContractCompleted    *bool `json:"contract_completed"`
	InstallCertReceived  *bool `json:"install_cert_received"`
	InstallPhotoReceived *bool `json:"install_photo_received"`
	DriveUploaded        *bool `json:"drive_uploaded" validate:"required_without_all=ContractCompleted InstallCertReceived InstallPhotoReceived"`
}

func (c checklistRequest) fields() map[string]any {
	out := map[string]any{}
	for name, v := range map[string]*bool{
		"contract_completed":     c.ContractCompleted,
		"install_cert_received":  c.InstallCertReceived,
		"install_photo_received": c.InstallPhotoReceived,
		"drive_uploaded":         c.DriveUploaded,
	} {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}

// details converts validator errors into envelope details.
func details(err error) []api.ErrorDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []api.ErrorDetail{{Message: err.Error()}}
	}
	out := make([]api.ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, api.ErrorDetail{
			Message: fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()),
			Code:    strings.ToUpper(fe.Tag()),
			In:      fe.Field(),
		})
	}
	return out
}

// checkStatus validates status against the stage's status set.
func (h *Handler) checkStatus(s *pipeline.Schema, status string) []api.ErrorDetail {
	if status == "" {
		return nil
	}
	if err := h.validate.Var(status, "oneof="+strings.Join(s.Statuses, " ")); err != nil {
		return []api.ErrorDetail{{
			Message: fmt.Sprintf("status %q is not one of %s", status, strings.Join(s.Statuses, ", ")),
			Code:    "INVALID_STATUS",
			In:      "status",
		}}
	}
	return nil
}

// checkRequired reports required text fields that are missing or blank.
func (h *Handler) checkRequired(s *pipeline.Schema, fields map[string]any) []api.ErrorDetail {
	var out []api.ErrorDetail
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		v, _ := fields[f.Name].(string)
		if err := h.validate.Var(strings.TrimSpace(v), "required"); err != nil {
			out = append(out, api.ErrorDetail{
				Message: fmt.Sprintf("%s is required", f.Name),
				Code:    "REQUIRED",
				In:      f.Name,
			})
		}
	}
	return out
}
