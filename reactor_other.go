//go:build !linux && !darwin

package dispatcher

func newReactor(int) (reactor, error) {
	return nil, ErrUnsupportedPlatform
}
