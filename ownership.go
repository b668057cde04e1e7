package chashmap

// Releaser is implemented by keys or values that hold resources the map
// must give back when it stops owning them. Release is called exactly
// once per stored instance: on Remove (key), on overwrite (old key),
// on Clear, and on IntoIter.Close for entries that were never yielded.
// Values returned to the caller by Insert or Remove are not released.
type Releaser interface {
	Release()
}

// Cloner is implemented by keys or values that need a deep copy in
// Clone. Types without it are copied by assignment.
type Cloner[T any] interface {
	Clone() T
}

func release[T any](v T) {
	if r, ok := any(v).(Releaser); ok {
		r.Release()
	}
}

func clone[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}
