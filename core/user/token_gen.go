package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/studyhub/core"
)

var (
	tokenSalt = []byte("studyhub/password-reset")
	NowFunc   = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID encodes the user id for a password reset link.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MakeToken returns a password reset token `<base36 expiry>-<signature>`.
// The token stops working once it expires, the password changes or the user logs in.
func MakeToken(usr User) (string, error) {
	expires := NowFunc().Add(core.Conf.PasswordResetTimeoutDelta).Unix()
	return strconv.FormatInt(expires, 36) + "-" + signToken(usr, expires), nil
}

func verifyToken(usr User, token string) error {
	i := strings.IndexByte(token, '-')
	if i <= 0 {
		return errInvalidToken
	}
	expires, err := strconv.ParseInt(token[:i], 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(token[i+1:]), []byte(signToken(usr, expires))) {
		return errInvalidToken
	}
	if NowFunc().Unix() > expires {
		return errTokenExpired
	}
	return nil
}

func signToken(usr User, expires int64) string {
	h := sha256.New()
	_, _ = h.Write(tokenSalt)
	_, _ = h.Write([]byte(core.Conf.SecretKey))
	mac := hmac.New(sha256.New, h.Sum(nil))

	var buf [8]byte
	_, _ = mac.Write([]byte(usr.ID))
	_, _ = mac.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		binary.BigEndian.PutUint64(buf[:], uint64(usr.LastLogin.UnixNano()))
		_, _ = mac.Write(buf[:])
	}
	binary.BigEndian.PutUint64(buf[:], uint64(expires))
	_, _ = mac.Write(buf[:])
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
