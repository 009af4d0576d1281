package push

import "errors"

var ErrInvalidDeviceToken = errors.New("malformed device push token")
