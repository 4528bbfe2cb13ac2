package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsFreeText(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/records"),
		attribute.String("notes", "bit the vet"),
		attribute.String("subject_ref", "dog-17"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsFirstLine(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New("boom\nstack")), "boom")
	assert.Nil(t, SafeError(errors.New("  ")))
}
