// Package handshake admits a client to a password protected session.
//
// The client opens with a public prime, the server answers with its own.
// Each side picks a private exponent and computes a partial key as
// clientPublic^private mod serverPublic, the partials are swapped, and both
// sides raise the received partial to their private exponent. The shared
// value is stretched with HKDF into a 32 character hex key that encrypts the
// password under AES-CBC with a fresh IV. The server compares the result
// with its own password and closes the connection on mismatch.
//
// This is not a sound key agreement. The 64-bit modulus falls to a discrete
// log search in seconds, neither public value is authenticated, and an
// active attacker in the middle can complete the exchange with both ends.
// It only keeps the password off the wire in plain text on a trusted LAN.
package handshake

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"math/big"
	"net"
	"strings"
	"time"

	"ohhell-server/internal/wire"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

const (
	// PasswordLength is the number of hex characters in a session password.
	PasswordLength = 16

	publicBits  = 64
	privateBits = 32
	keyBytes    = 16

	// DefaultTimeout bounds the whole exchange.
	DefaultTimeout = 10 * time.Second

	accepted = "OK"
)

var hkdfInfo = []byte("ohhell session key")

var (
	ErrMalformed        = errors.New("HANDSHAKE_MALFORMED: unexpected handshake message")
	ErrPasswordMismatch = errors.New("PASSWORD_MISMATCH: password rejected")
	ErrInvalidPassword  = errors.New("PASSWORD_INVALID: password must be 16 hex characters")
)

// ValidatePassword checks the configured password format.
func ValidatePassword(password string) error {
	if len(password) != PasswordLength {
		return ErrInvalidPassword
	}
	if _, err := hex.DecodeString(password); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// GeneratePassword returns a random password in the configured format.
func GeneratePassword() (string, error) {
	b := make([]byte, PasswordLength/2)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", errors.Wrap(err, "generate password failed")
	}
	return hex.EncodeToString(b), nil
}

// CheckPassword compares two passwords byte for byte in constant time.
func CheckPassword(expected, got string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// keyPair is one side's view of the exchange.
type keyPair struct {
	clientPublic *big.Int
	serverPublic *big.Int
	private      *big.Int
}

func newPrivate() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), privateBits)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, errors.Wrap(err, "generate private exponent failed")
	}
	return n.Add(n, big.NewInt(2)), nil
}

func newPublic() (*big.Int, error) {
	p, err := rand.Prime(rand.Reader, publicBits)
	if err != nil {
		return nil, errors.Wrap(err, "generate public prime failed")
	}
	return p, nil
}

func (k keyPair) partial() *big.Int {
	return new(big.Int).Exp(k.clientPublic, k.private, k.serverPublic)
}

// sessionKey derives the hex key from the other side's partial key.
func (k keyPair) sessionKey(otherPartial *big.Int) ([]byte, error) {
	full := new(big.Int).Exp(otherPartial, k.private, k.serverPublic)
	out := make([]byte, keyBytes)
	if _, err := io.ReadFull(hkdf.New(sha256.New, full.Bytes(), nil, hkdfInfo), out); err != nil {
		return nil, errors.Wrap(err, "derive key failed")
	}
	return []byte(hex.EncodeToString(out)), nil
}

func sendNumber(w io.Writer, n *big.Int) error {
	return wire.WriteFrame(w, []byte(n.String()))
}

// readPayload reads one data frame. A terminate token means the peer gave up.
func readPayload(r io.Reader) (string, error) {
	frame, err := wire.ReadFrame(r)
	if err != nil {
		return "", errors.Wrap(err, "read handshake frame failed")
	}
	if frame.IsControl() {
		if frame.Control == wire.Terminate {
			return "", ErrPasswordMismatch
		}
		return "", errors.Wrapf(ErrMalformed, "control %q during handshake", frame.Control)
	}
	return string(frame.Payload), nil
}

func readNumber(r io.Reader, bound *big.Int) (*big.Int, error) {
	payload, err := readPayload(r)
	if err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(strings.TrimSpace(payload), 10)
	if !ok || n.Sign() <= 0 {
		return nil, errors.Wrapf(ErrMalformed, "number %q", payload)
	}
	if bound != nil && n.Cmp(bound) >= 0 {
		return nil, errors.Wrapf(ErrMalformed, "number %s out of range", n)
	}
	return n, nil
}

var publicBound = new(big.Int).Lsh(big.NewInt(1), publicBits)

func withDeadline(conn net.Conn, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return errors.Wrap(err, "set handshake deadline failed")
	}
	err := fn()
	if clearErr := conn.SetDeadline(time.Time{}); err == nil && clearErr != nil {
		err = errors.Wrap(clearErr, "clear handshake deadline failed")
	}
	return err
}

// Server runs the accepting side. On a wrong password it sends the
// terminate token and returns ErrPasswordMismatch; the caller closes conn.
func Server(conn net.Conn, password string, timeout time.Duration) error {
	return withDeadline(conn, timeout, func() error {
		clientPublic, err := readNumber(conn, publicBound)
		if err != nil {
			return err
		}
		if clientPublic.Cmp(big.NewInt(1)) == 0 {
			return errors.Wrap(ErrMalformed, "client public value is 1")
		}

		serverPublic, err := newPublic()
		for err == nil && serverPublic.Cmp(clientPublic) == 0 {
			serverPublic, err = newPublic()
		}
		if err != nil {
			return err
		}
		private, err := newPrivate()
		if err != nil {
			return err
		}
		keys := keyPair{clientPublic: clientPublic, serverPublic: serverPublic, private: private}

		if err := sendNumber(conn, serverPublic); err != nil {
			return err
		}
		clientPartial, err := readNumber(conn, serverPublic)
		if err != nil {
			return err
		}
		if err := sendNumber(conn, keys.partial()); err != nil {
			return err
		}
		key, err := keys.sessionKey(clientPartial)
		if err != nil {
			return err
		}

		payload, err := readPayload(conn)
		if err != nil {
			return err
		}
		got, err := decryptPassword(key, payload)
		if err != nil || !CheckPassword(password, got) {
			// Malformed ciphertext and a wrong password look the same to the peer.
			logger.WithField("remote", conn.RemoteAddr().String()).Warn("password rejected")
			if werr := wire.WriteControl(conn, wire.Terminate); werr != nil {
				logger.WithError(werr).Debug("send terminate failed")
			}
			return ErrPasswordMismatch
		}
		return wire.WriteFrame(conn, []byte(accepted))
	})
}

// Client runs the connecting side and returns ErrPasswordMismatch when the
// server refuses the password.
func Client(conn net.Conn, password string, timeout time.Duration) error {
	return withDeadline(conn, timeout, func() error {
		clientPublic, err := newPublic()
		if err != nil {
			return err
		}
		private, err := newPrivate()
		if err != nil {
			return err
		}
		if err := sendNumber(conn, clientPublic); err != nil {
			return err
		}
		serverPublic, err := readNumber(conn, publicBound)
		if err != nil {
			return err
		}
		if serverPublic.Cmp(big.NewInt(2)) < 0 {
			return errors.Wrap(ErrMalformed, "server public value too small")
		}
		keys := keyPair{clientPublic: clientPublic, serverPublic: serverPublic, private: private}

		if err := sendNumber(conn, keys.partial()); err != nil {
			return err
		}
		serverPartial, err := readNumber(conn, serverPublic)
		if err != nil {
			return err
		}
		key, err := keys.sessionKey(serverPartial)
		if err != nil {
			return err
		}

		sealed, err := encryptPassword(key, password)
		if err != nil {
			return err
		}
		if err := wire.WriteFrame(conn, []byte(sealed)); err != nil {
			return err
		}
		reply, err := readPayload(conn)
		if err != nil {
			return err
		}
		if reply != accepted {
			return errors.Wrapf(ErrMalformed, "reply %q", reply)
		}
		return nil
	})
}
