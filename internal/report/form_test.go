package report

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/claimwildcats/internal/model"
)

func validForm() Form {
	return Form{
		Title:        "  Blue backpack ",
		Description:  "North Face, has a keychain",
		LocationText: "Main lobby",
		CampusZone:   "library",
		LastSeenAt:   "2024-05-01T10:30",
		Tags:         "Blue, Backpack",
	}
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Blue, Backpack", []string{"blue", "backpack"}},
		{"a\nB\r\nc,,  ,d", []string{"a", "b", "c", "d"}},
		{"x, x", []string{"x", "x"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitTags(tt.in), tt.in)
	}
}

func TestParseLastSeen(t *testing.T) {
	got, err := ParseLastSeen("2024-05-01T10:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 2, 30, 0, 0, time.UTC), got)

	got, err = ParseLastSeen("2024-05-01T00:15:20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 30, 16, 15, 20, 0, time.UTC), got)

	got, err = ParseLastSeen("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseLastSeen("yesterday")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validForm().Validate())

	err := Form{Title: " ", CampusZone: "Moon", LastSeenAt: "soon"}.Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Fields, 5)
	assert.Equal(t, "Title is required.", ve.Fields["title"])
	assert.Equal(t, "Enter a valid date and time.", ve.Fields["lastSeenAt"])
	assert.Equal(t, "Title is required. Description is required. Location details are required. "+
		"Select a valid campus zone. Enter a valid date and time.", err.Error())
}

func TestPayload(t *testing.T) {
	req, err := validForm().Payload([]string{"storage://b/items/1/a.jpg"})
	require.NoError(t, err)

	assert.Equal(t, "Blue backpack", req.Title)
	require.NotNil(t, req.CampusZone)
	assert.Equal(t, model.ZoneLibrary, *req.CampusZone)
	require.NotNil(t, req.LastSeenAt)
	assert.Equal(t, "2024-05-01T02:30:00Z", req.LastSeenAt.Format(time.RFC3339))
	assert.Equal(t, []string{"blue", "backpack"}, req.Tags)
	assert.Equal(t, []string{"storage://b/items/1/a.jpg"}, req.DocURLs)
}

func TestPayloadUnsetZone(t *testing.T) {
	f := validForm()
	f.CampusZone = ""
	f.Tags = ""

	req, err := f.Payload(nil)
	require.NoError(t, err)
	assert.Nil(t, req.CampusZone)
	assert.Equal(t, []string{}, req.Tags)
	assert.Equal(t, []string{}, req.DocURLs)
}

func TestFormFromValues(t *testing.T) {
	v := url.Values{
		"title":        {"Umbrella"},
		"description":  {"Black"},
		"locationText": {"Gym"},
		"campusZone":   {"Gym"},
		"lastSeenAt":   {"2024-01-02T08:00"},
		"tags":         {"rain"},
	}
	f := FormFromValues(v)
	assert.Equal(t, Form{
		Title:        "Umbrella",
		Description:  "Black",
		LocationText: "Gym",
		CampusZone:   "Gym",
		LastSeenAt:   "2024-01-02T08:00",
		Tags:         "rain",
	}, f)
}
