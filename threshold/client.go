package threshold

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudflare/circl/group"
	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/secretsharing"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"onigiri.dev/shake/ledger"
)

var dataKeyGroup = group.Ristretto255

// Client encrypts to, and decrypts through, a fixed set of key servers.
type Client struct {
	Servers []KeyServer
	// Rand defaults to crypto/rand.
	Rand   io.Reader
	Logger *slog.Logger
}

var (
	_ Encryptor = (*Client)(nil)
	_ Decryptor = (*Client)(nil)
)

func (c *Client) rand() io.Reader {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.Reader
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func dataKey(secret group.Scalar, packageID string, id Identifier) ([]byte, error) {
	ikm, err := secret.MarshalBinary()
	if err != nil {
		return nil, err
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, ikm, nil, ShareInfo(packageID, id))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals req.Data and splits its key across every configured server,
// any req.Threshold of which can decrypt.
func (c *Client) Encrypt(ctx context.Context, req Request) ([]byte, error) {
	n := len(c.Servers)
	if req.Threshold < 1 || req.Threshold > n {
		return nil, fmt.Errorf("threshold: threshold %d needs between 1 and %d key servers", req.Threshold, n)
	}
	if len(req.ID) == 0 {
		return nil, errors.New("threshold: empty identifier")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	secret := dataKeyGroup.RandomScalar(c.rand())
	key, err := dataKey(secret, req.PackageID, req.ID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(c.rand(), nonce); err != nil {
		return nil, err
	}

	shares := secretsharing.New(c.rand(), uint(req.Threshold-1), secret).Share(uint(n))
	info := ShareInfo(req.PackageID, req.ID)
	obj := EncryptedObject{
		Version:    ObjectVersion,
		PackageID:  req.PackageID,
		ID:         req.ID.String(),
		Threshold:  req.Threshold,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, req.Data, req.ID),
		Shares:     make([]SealedShare, 0, n),
	}
	for i, srv := range c.Servers {
		sealed, err := sealShare(c.rand(), srv, info, shares[i])
		if err != nil {
			return nil, fmt.Errorf("threshold: seal share for %s: %w", srv.ObjectID(), err)
		}
		obj.Shares = append(obj.Shares, sealed)
	}
	return json.Marshal(obj)
}

func sealShare(rnd io.Reader, srv KeyServer, info []byte, share secretsharing.Share) (SealedShare, error) {
	pk, err := hpke.KEM_X25519_HKDF_SHA256.Scheme().UnmarshalBinaryPublicKey(srv.PublicKey())
	if err != nil {
		return SealedShare{}, err
	}
	sender, err := Suite.NewSender(pk, info)
	if err != nil {
		return SealedShare{}, err
	}
	enc, sealer, err := sender.Setup(rnd)
	if err != nil {
		return SealedShare{}, err
	}
	pt, err := marshalShare(share)
	if err != nil {
		return SealedShare{}, err
	}
	ct, err := sealer.Seal(pt, []byte(srv.ObjectID()))
	if err != nil {
		return SealedShare{}, err
	}
	return SealedShare{Server: srv.ObjectID(), Enc: enc, Sealed: ct}, nil
}

func marshalShare(s secretsharing.Share) ([]byte, error) {
	id, err := s.ID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v, err := s.Value.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(id, v...), nil
}

// UnmarshalShare decodes a share released by a key server.
func UnmarshalShare(b []byte) (secretsharing.Share, error) {
	zero, err := dataKeyGroup.NewScalar().MarshalBinary()
	if err != nil {
		return secretsharing.Share{}, err
	}
	size := len(zero)
	if len(b) != 2*size {
		return secretsharing.Share{}, fmt.Errorf("threshold: share has %d bytes, want %d", len(b), 2*size)
	}
	id, v := dataKeyGroup.NewScalar(), dataKeyGroup.NewScalar()
	if err := id.UnmarshalBinary(b[:size]); err != nil {
		return secretsharing.Share{}, err
	}
	if err := v.UnmarshalBinary(b[size:]); err != nil {
		return secretsharing.Share{}, err
	}
	return secretsharing.Share{ID: id, Value: v}, nil
}

// Decrypt asks servers, in configured order, for their shares until the
// object's threshold is met, then opens the content.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte, reader ledger.Signer) ([]byte, error) {
	obj, id, err := ParseEncryptedObject(ciphertext)
	if err != nil {
		return nil, err
	}
	sig, err := reader.Sign(RequestMessage(obj.PackageID, id))
	if err != nil {
		return nil, fmt.Errorf("threshold: sign share request: %w", err)
	}

	sealed := make(map[string]SealedShare, len(obj.Shares))
	for _, s := range obj.Shares {
		sealed[s.Server] = s
	}

	var (
		shares []secretsharing.Share
		denied int
	)
	for _, srv := range c.Servers {
		if len(shares) == obj.Threshold {
			break
		}
		s, ok := sealed[srv.ObjectID()]
		if !ok {
			continue
		}
		raw, err := srv.ReleaseShare(ctx, ShareRequest{
			PackageID: obj.PackageID,
			ID:        id,
			Requester: reader.Address(),
			Signature: sig,
			Share:     s,
		})
		if err != nil {
			if errors.Is(err, ErrDenied) {
				denied++
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger().Warn("key server did not release share", "server", srv.ObjectID(), "err", err)
			continue
		}
		share, err := UnmarshalShare(raw)
		if err != nil {
			c.logger().Warn("key server returned a malformed share", "server", srv.ObjectID(), "err", err)
			continue
		}
		shares = append(shares, share)
	}

	if len(shares) < obj.Threshold {
		err := fmt.Errorf("%w: got %d of %d", ErrThresholdUnmet, len(shares), obj.Threshold)
		if denied > 0 {
			err = errors.Join(err, ErrDenied)
		}
		return nil, err
	}

	secret, err := secretsharing.Recover(uint(obj.Threshold-1), shares)
	if err != nil {
		return nil, fmt.Errorf("threshold: recover key: %w", err)
	}
	key, err := dataKey(secret, obj.PackageID, id)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(obj.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", ErrMalformedObject, len(obj.Nonce))
	}
	pt, err := aead.Open(nil, obj.Nonce, obj.Ciphertext, id)
	if err != nil {
		return nil, fmt.Errorf("threshold: open content: %w", err)
	}
	return pt, nil
}
