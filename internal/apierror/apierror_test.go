/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kassa-labs/recon/internal/apierror"
	"github.com/kassa-labs/recon/model"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "NotFound Error",
			err:      apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil),
			expected: http.StatusNotFound,
		},
		{
			name:     "Conflict Error",
			err:      apierror.NewAPIError(apierror.ErrConflict, "Conflict occurred", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "InvalidInput Error",
			err:      apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil),
			expected: http.StatusBadRequest,
		},
		{
			name:     "Already matched",
			err:      model.NewAlreadyMatched(model.SideItem, "item_1"),
			expected: http.StatusConflict,
		},
		{
			name:     "Wrapped drift",
			err:      fmt.Errorf("commit: %w", model.NewAmountDrift(model.SideItem, 14500, 9500, "a", "b")),
			expected: http.StatusConflict,
		},
		{
			name:     "Validation",
			err:      model.NewValidationError("item_ids", "must not be empty"),
			expected: http.StatusBadRequest,
		},
		{
			name:     "Record not found",
			err:      &model.NotFoundError{Kind: model.RecordBankTransaction, ID: "bt_1"},
			expected: http.StatusNotFound,
		},
		{
			name:     "Unknown Error",
			err:      errors.New("Unknown error"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusCode := apierror.MapErrorToHTTPStatus(tt.err)
			assert.Equal(t, tt.expected, statusCode)
		})
	}
}

func TestFromErrorKeepsConflictDetails(t *testing.T) {
	conflict := model.NewAmountDrift(model.SideItem, 14500, 9500, "a", "b")
	apiErr := apierror.FromError(conflict)

	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.Equal(t, "amount drift on item a,b: expected 145.00, got 95.00", apiErr.Message)
	assert.Same(t, conflict, apiErr.Details)
}
