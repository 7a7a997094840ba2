package portal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSelectors_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"captcha_image: \"#new_captcha\"\ndownload_button: \"#new_download\"\n",
	), 0o644))

	sel, err := LoadSelectors(path)
	require.NoError(t, err)

	assert.Equal(t, "#new_captcha", sel.CaptchaImage)
	assert.Equal(t, "#new_download", sel.DownloadButton)
	assert.Equal(t, DefaultSelectors().Reporter, sel.Reporter, "unlisted entries keep their defaults")
}

func TestLoadSelectors_MissingFile(t *testing.T) {
	_, err := LoadSelectors(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
