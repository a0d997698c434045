package user

import (
	"bytes"
	"io"

	"github.com/disintegration/imaging"
)

const avatarSize = 256

// resizeAvatar decodes an image and crops it to a centered avatarSize square JPEG.
func resizeAvatar(r io.Reader) (*bytes.Buffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrInvalidAvatar
	}
	thumb := imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err = imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf, nil
}
