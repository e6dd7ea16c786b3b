package factors

import (
	"net/http"
	"os"
	"time"

	"github.com/arctide/cyst/internal/factor"
)

// DefaultUploadURL is the ephemeral-upload factor's default paste host
// endpoint. transfer.sh-style hosts accept a raw PUT/POST of the body and
// respond with the URL to fetch it back from, which is exactly the
// contract EphemeralFactor expects.
const DefaultUploadURL = "https://transfer.sh"

// NewRegistry builds the default factor.Registry this binary ships:
// Passphrase, Keyfile, and Ephemeral. interactive controls whether
// Passphrase and Keyfile prompt via huh or fall back to stdin/configured
// paths (spec.md's non-interactive / --stdin mode).
func NewRegistry(interactive bool) factor.Registry {
	return factor.NewRegistry(
		&PassphraseFactor{Interactive: interactive, Stdin: os.Stdin},
		&KeyfileFactor{Interactive: interactive},
		&EphemeralFactor{Client: &http.Client{Timeout: 30 * time.Second}, UploadURL: DefaultUploadURL},
	)
}
