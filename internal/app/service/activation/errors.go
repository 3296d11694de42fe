package activation

import "errors"

var errCodeSpaceExhausted = errors.New("could not generate a unique activation code")
