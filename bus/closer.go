package bus

type CloserFunc func() error

func (cf CloserFunc) Close() error {
	return cf()
}
