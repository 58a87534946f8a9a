package ofd

// Limits bounds what the loader accepts. Zero fields take the defaults.
type Limits struct {
	MaxContainerSize int64  // bytes of the ZIP container as read from the stream
	MaxEntries       int    // number of non-directory entries
	MaxEntrySize     uint64 // decompressed size of a single entry
	MaxTotalSize     uint64 // decompressed size of all entries together
}

func defaultLimits() Limits {
	return Limits{
		MaxContainerSize: 1 << 30,   // 1 GiB
		MaxEntries:       100_000,
		MaxEntrySize:     512 << 20, // 512 MiB
		MaxTotalSize:     2 << 30,   // 2 GiB
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxContainerSize == 0 {
		l.MaxContainerSize = d.MaxContainerSize
	}
	if l.MaxEntries == 0 {
		l.MaxEntries = d.MaxEntries
	}
	if l.MaxEntrySize == 0 {
		l.MaxEntrySize = d.MaxEntrySize
	}
	if l.MaxTotalSize == 0 {
		l.MaxTotalSize = d.MaxTotalSize
	}
	return l
}
