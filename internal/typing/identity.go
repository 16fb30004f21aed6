package typing

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/omochice/j2me-gateway/internal/config"
)

// superProperties is the client description the upstream service expects in
// X-Super-Properties. Field order matters to anyone diffing against the real
// client, so it follows the Android app.
type superProperties struct {
	OS                string  `json:"os"`
	Browser           string  `json:"browser"`
	Device            string  `json:"device"`
	SystemLocale      string  `json:"system_locale"`
	HasClientMods     bool    `json:"has_client_mods"`
	ClientVersion     string  `json:"client_version"`
	ReleaseChannel    string  `json:"release_channel"`
	DeviceVendorID    string  `json:"device_vendor_id"`
	DesignID          int     `json:"design_id"`
	BrowserUserAgent  string  `json:"browser_user_agent"`
	BrowserVersion    string  `json:"browser_version"`
	OSVersion         string  `json:"os_version"`
	ClientBuildNumber int     `json:"client_build_number"`
	ClientEventSource *string `json:"client_event_source"`
}

// Headers returns the identity headers sent with every REST call.
func Headers(id config.Identity) (map[string]string, error) {
	props, err := json.Marshal(superProperties{
		OS:                id.OS,
		Browser:           id.Browser,
		Device:            id.Device,
		SystemLocale:      id.SystemLocale,
		ClientVersion:     id.ClientVersion,
		ReleaseChannel:    id.ReleaseChannel,
		DeviceVendorID:    id.DeviceVendorID,
		DesignID:          id.DesignID,
		BrowserVersion:    id.BrowserVersion,
		OSVersion:         id.OSVersion,
		ClientBuildNumber: id.ClientBuildNumber,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode super properties")
	}

	return map[string]string{
		"User-Agent":         id.UserAgent,
		"X-Super-Properties": base64.StdEncoding.EncodeToString(props),
		"X-Discord-Locale":   id.Locale,
		"X-Discord-Timezone": id.Timezone,
		"Accept":             "*/*",
		"Accept-Language":    id.Locale + ",en;q=0.9",
		"Cookie":             "locale=" + id.Locale,
	}, nil
}
