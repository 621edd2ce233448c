package templates

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderResetCode(t *testing.T) {
	subject, text, html, err := Render(ResetCode, EmailData{
		Name:        "Ada",
		Email:       "ada@x.com",
		Code:        "123456",
		ExpiresIn:   "2m0s",
		CompanyName: "ACME Books",
	})
	require.NoError(t, err)
	require.Contains(t, subject, "ACME Books")
	require.Contains(t, text, "123456")
	require.Contains(t, text, "ada@x.com")
	require.Contains(t, html, "123456")
}

func TestRenderDefaultsFillEmptyFields(t *testing.T) {
	_, text, _, err := Render(ResetCode, EmailData{Email: "ada@x.com", Code: "654321"})
	require.NoError(t, err)
	require.Contains(t, text, "there")
	require.Contains(t, text, "ACC Software")
}

func TestRenderWelcome(t *testing.T) {
	subject, text, html, err := Render(Welcome, EmailData{
		Name:        "Ada",
		Email:       "ada@x.com",
		CompanyName: "ACME Books",
	})
	require.NoError(t, err)
	require.Contains(t, subject, "Welcome")
	require.NotEmpty(t, text)
	require.NotEmpty(t, html)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, _, err := Render("nope", EmailData{})
	require.Error(t, err)
}

func TestToMapRoundTrip(t *testing.T) {
	m := ToMap(EmailData{Name: "Ada", Email: "ada@x.com", Code: "123456"})
	require.Equal(t, "Ada", m["Name"])
	require.Equal(t, "123456", m["Code"])
	// omitempty fields stay out of the queue payload
	require.NotContains(t, m, "ExpiresIn")
}
