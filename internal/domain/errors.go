package domain

import "errors"

// ErrProviderRejected is matched by provider errors that mean the provider
// refused a request, as opposed to being unreachable.
var ErrProviderRejected = errors.New("provider rejected request")
