package upload

import "errors"

var (
	// ErrInvalidFileType signals a media type outside the image/ family.
	ErrInvalidFileType = errors.New("only image uploads are allowed")
)
