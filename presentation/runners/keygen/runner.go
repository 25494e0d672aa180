package keygen

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"meshvpn/infrastructure/cryptography/noise"
)

// Runner prints a fresh node identity, ready to be pasted into a
// configuration file or the MESHVPN_PRIVATE_KEY variable.
type Runner struct {
	out io.Writer
}

func NewRunner(out io.Writer) *Runner {
	return &Runner{out: out}
}

func (r *Runner) Run(_ context.Context) error {
	identity, err := noise.GenerateIdentity()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}
	_, err = fmt.Fprintf(r.out, "node id:     %s\npublic key:  %s\nprivate key: %s\n",
		identity.NodeID(),
		base64.StdEncoding.EncodeToString(identity.PublicKey()),
		base64.StdEncoding.EncodeToString(identity.PrivateKey()),
	)
	return err
}
