package notification

import "errors"

var errNoEmail = errors.New("user has no email address")
