// Package marshal is the runtime marshaller library: one Codec per native
// type variant converting between a native buffer element and its managed
// Go value.
//
// Container codecs come in two variants. The live variants (ArrayLive,
// MapLive, SetLive) return views that read and write the native buffer in
// place and are used for members of classes. The copy variants return
// detached values and are used for struct members and parameters, so
// mutations are not observed natively until written back with ToNative.
//
// Managed values:
//
//	numerics   int8..int64, uint8..uint64, float32, float64
//	bool       bool
//	string     string
//	name       Name
//	text       Text
//	enum       int64
//	struct     Struct
//	object     *Object (unique per address)
//	weak/soft  WeakRef / SoftRef
//	interface  Interface
//	delegate   Delegate, []Delegate
//	array      []any or *ArrayView
//	map        Map or *MapView
//	set        []any or *SetView
//	optional   Option
package marshal
