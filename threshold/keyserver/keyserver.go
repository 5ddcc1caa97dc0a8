// Package keyserver is a development key server for package threshold.
//
// A Server holds an HPKE key pair and releases its share of a data key only
// to readers its Policy approves. Readers prove their address by signing the
// share request.
package keyserver

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"

	"onigiri.dev/shake/keys"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/threshold"
)

// Policy decides whether requester may decrypt content id.
type Policy interface {
	Approve(ctx context.Context, packageID string, id threshold.Identifier, requester ledger.Address) error
}

type PolicyFunc func(ctx context.Context, packageID string, id threshold.Identifier, requester ledger.Address) error

func (f PolicyFunc) Approve(ctx context.Context, packageID string, id threshold.Identifier, requester ledger.Address) error {
	return f(ctx, packageID, id, requester)
}

// AllowAll approves every reader.
var AllowAll = PolicyFunc(func(context.Context, string, threshold.Identifier, ledger.Address) error { return nil })

// Allowlist approves the listed addresses for every identifier.
type Allowlist map[ledger.Address]bool

func (a Allowlist) Approve(_ context.Context, _ string, _ threshold.Identifier, requester ledger.Address) error {
	if a[requester] {
		return nil
	}
	return fmt.Errorf("%w: %s is not allowlisted", threshold.ErrDenied, requester)
}

type Server struct {
	Policy Policy
	Logger *slog.Logger

	objectID string
	pk       kem.PublicKey
	sk       kem.PrivateKey
}

var _ threshold.KeyServer = (*Server)(nil)

// New creates a server with a fresh key pair. rnd defaults to crypto/rand.
func New(objectID string, policy Policy, rnd io.Reader) (*Server, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	if policy == nil {
		return nil, fmt.Errorf("keyserver: %s: policy is required", objectID)
	}
	scheme := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	seed := make([]byte, scheme.SeedSize())
	if _, err := io.ReadFull(rnd, seed); err != nil {
		return nil, fmt.Errorf("keyserver: key seed: %w", err)
	}
	pk, sk := scheme.DeriveKeyPair(seed)
	return &Server{Policy: policy, objectID: objectID, pk: pk, sk: sk}, nil
}

func (s *Server) ObjectID() string { return s.objectID }

func (s *Server) PublicKey() []byte {
	b, err := s.pk.MarshalBinary()
	if err != nil {
		return nil
	}
	return b
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) ReleaseShare(ctx context.Context, req threshold.ShareRequest) ([]byte, error) {
	if req.Share.Server != s.objectID {
		return nil, fmt.Errorf("keyserver: share is for %s, not %s", req.Share.Server, s.objectID)
	}
	signer, err := keys.Verify(req.Signature, threshold.RequestMessage(req.PackageID, req.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", threshold.ErrDenied, err)
	}
	if signer != req.Requester {
		return nil, fmt.Errorf("%w: request signed by %s for %s", threshold.ErrDenied, signer, req.Requester)
	}
	if err := s.Policy.Approve(ctx, req.PackageID, req.ID, req.Requester); err != nil {
		s.logger().Info("share request denied", "server", s.objectID, "id", req.ID.String(), "requester", req.Requester, "err", err)
		if !errors.Is(err, threshold.ErrDenied) {
			err = fmt.Errorf("%w: %v", threshold.ErrDenied, err)
		}
		return nil, err
	}

	receiver, err := threshold.Suite.NewReceiver(s.sk, threshold.ShareInfo(req.PackageID, req.ID))
	if err != nil {
		return nil, err
	}
	opener, err := receiver.Setup(req.Share.Enc)
	if err != nil {
		return nil, fmt.Errorf("keyserver: %w", err)
	}
	share, err := opener.Open(req.Share.Sealed, []byte(s.objectID))
	if err != nil {
		return nil, fmt.Errorf("keyserver: open share: %w", err)
	}
	return share, nil
}
