//go:build darwin || linux

package native

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/eigerco/kvbind/pkg/db"
)

// Pointer parameters are passed as uintptr or typed pointers; size_t maps to
// uintptr and int to int32.
var (
	pmemkvErrormsg func() string

	pmemkvConfigNew       func() uintptr
	pmemkvConfigDelete    func(cfg uintptr)
	pmemkvConfigPutUint64 func(cfg uintptr, key string, value uint64) int32
	pmemkvConfigPutInt64  func(cfg uintptr, key string, value int64) int32
	pmemkvConfigPutString func(cfg uintptr, key, value string) int32

	pmemkvOpen   func(engine string, cfg uintptr, handle *uintptr) int32
	pmemkvClose  func(handle uintptr)
	pmemkvDefrag func(handle uintptr, startPercent, amountPercent float64) int32

	pmemkvCountAll     func(handle uintptr, cnt *uint64) int32
	pmemkvCountAbove   func(handle uintptr, k uintptr, kb uintptr, cnt *uint64) int32
	pmemkvCountBelow   func(handle uintptr, k uintptr, kb uintptr, cnt *uint64) int32
	pmemkvCountBetween func(handle uintptr, k1 uintptr, kb1 uintptr, k2 uintptr, kb2 uintptr, cnt *uint64) int32

	pmemkvGetAll     func(handle uintptr, cb uintptr, arg uintptr) int32
	pmemkvGetAbove   func(handle uintptr, k uintptr, kb uintptr, cb uintptr, arg uintptr) int32
	pmemkvGetBelow   func(handle uintptr, k uintptr, kb uintptr, cb uintptr, arg uintptr) int32
	pmemkvGetBetween func(handle uintptr, k1 uintptr, kb1 uintptr, k2 uintptr, kb2 uintptr, cb uintptr, arg uintptr) int32

	pmemkvExists func(handle uintptr, k uintptr, kb uintptr) int32
	pmemkvGet    func(handle uintptr, k uintptr, kb uintptr, cb uintptr, arg uintptr) int32
	pmemkvPut    func(handle uintptr, k uintptr, kb uintptr, v uintptr, vb uintptr) int32
	pmemkvRemove func(handle uintptr, k uintptr, kb uintptr) int32

	readIterator  iteratorFuncs
	writeIterator iteratorFuncs

	pmemkvWriteIteratorWriteRange func(it uintptr, pos, n uintptr, data *uintptr, wb *uintptr) int32
	pmemkvWriteIteratorCommit     func(it uintptr) int32
	pmemkvWriteIteratorAbort      func(it uintptr)
)

// iteratorFuncs holds the functions libpmemkv exports twice, once for read
// iterators and once for write iterators.
type iteratorFuncs struct {
	new          func(handle uintptr, it *uintptr) int32
	delete       func(it uintptr)
	seek         func(it uintptr, k uintptr, kb uintptr) int32
	seekLower    func(it uintptr, k uintptr, kb uintptr) int32
	seekLowerEq  func(it uintptr, k uintptr, kb uintptr) int32
	seekHigher   func(it uintptr, k uintptr, kb uintptr) int32
	seekHigherEq func(it uintptr, k uintptr, kb uintptr) int32
	seekToFirst  func(it uintptr) int32
	seekToLast   func(it uintptr) int32
	isNext       func(it uintptr) int32
	next         func(it uintptr) int32
	prev         func(it uintptr) int32
	key          func(it uintptr, k *uintptr, kb *uintptr) int32
	readRange    func(it uintptr, pos, n uintptr, data *uintptr, rb *uintptr) int32
}

func (f *iteratorFuncs) symbols(prefix string) map[string]any {
	return map[string]any{
		prefix + "new":            &f.new,
		prefix + "delete":         &f.delete,
		prefix + "seek":           &f.seek,
		prefix + "seek_lower":     &f.seekLower,
		prefix + "seek_lower_eq":  &f.seekLowerEq,
		prefix + "seek_higher":    &f.seekHigher,
		prefix + "seek_higher_eq": &f.seekHigherEq,
		prefix + "seek_to_first":  &f.seekToFirst,
		prefix + "seek_to_last":   &f.seekToLast,
		prefix + "is_next":        &f.isNext,
		prefix + "next":           &f.next,
		prefix + "prev":           &f.prev,
		prefix + "key":            &f.key,
		prefix + "read_range":     &f.readRange,
	}
}

func symbols() map[string]any {
	syms := map[string]any{
		"pmemkv_errormsg":                   &pmemkvErrormsg,
		"pmemkv_config_new":                 &pmemkvConfigNew,
		"pmemkv_config_delete":              &pmemkvConfigDelete,
		"pmemkv_config_put_uint64":          &pmemkvConfigPutUint64,
		"pmemkv_config_put_int64":           &pmemkvConfigPutInt64,
		"pmemkv_config_put_string":          &pmemkvConfigPutString,
		"pmemkv_open":                       &pmemkvOpen,
		"pmemkv_close":                      &pmemkvClose,
		"pmemkv_defrag":                     &pmemkvDefrag,
		"pmemkv_count_all":                  &pmemkvCountAll,
		"pmemkv_count_above":                &pmemkvCountAbove,
		"pmemkv_count_below":                &pmemkvCountBelow,
		"pmemkv_count_between":              &pmemkvCountBetween,
		"pmemkv_get_all":                    &pmemkvGetAll,
		"pmemkv_get_above":                  &pmemkvGetAbove,
		"pmemkv_get_below":                  &pmemkvGetBelow,
		"pmemkv_get_between":                &pmemkvGetBetween,
		"pmemkv_exists":                     &pmemkvExists,
		"pmemkv_get":                        &pmemkvGet,
		"pmemkv_put":                        &pmemkvPut,
		"pmemkv_remove":                     &pmemkvRemove,
		"pmemkv_write_iterator_write_range": &pmemkvWriteIteratorWriteRange,
		"pmemkv_write_iterator_commit":      &pmemkvWriteIteratorCommit,
		"pmemkv_write_iterator_abort":       &pmemkvWriteIteratorAbort,
	}
	for name, fptr := range readIterator.symbols("pmemkv_iterator_") {
		syms[name] = fptr
	}
	for name, fptr := range writeIterator.symbols("pmemkv_write_iterator_") {
		syms[name] = fptr
	}
	return syms
}

// The two callback trampolines are created once; purego callbacks are never
// freed. The arg parameter carries a registry id.
var (
	kvCallback uintptr
	vCallback  uintptr
)

func load(path string) error {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("dlopen %s: %w", path, err)
	}
	for name, fptr := range symbols() {
		sym, err := purego.Dlsym(lib, name)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		purego.RegisterFunc(fptr, sym)
	}

	kvCallback = purego.NewCallback(visitRecord)
	vCallback = purego.NewCallback(visitValue)
	return nil
}

var (
	callbacks sync.Map // uintptr -> any
	nextID    atomic.Uintptr
)

func register(fn any) (id uintptr, release func()) {
	id = nextID.Add(1)
	callbacks.Store(id, fn)
	return id, func() { callbacks.Delete(id) }
}

func visitRecord(k, kb, v, vb, arg uintptr) int32 {
	fn, ok := callbacks.Load(arg)
	if !ok {
		return 1
	}
	return int32(fn.(db.VisitFunc)(view(k, kb), view(v, vb)))
}

// visitValue backs a void C callback; the result is ignored.
func visitValue(v, vb, arg uintptr) int32 {
	if fn, ok := callbacks.Load(arg); ok {
		fn.(func([]byte))(view(v, vb))
	}
	return 0
}

// view returns a slice over n bytes of native memory at p.
func view(p, n uintptr) []byte {
	if n == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

// ptr returns the address of the first byte of b. Empty slices get a valid
// dummy address, libpmemkv rejects null keys.
func ptr(b []byte) uintptr {
	if len(b) == 0 {
		return uintptr(unsafe.Pointer(&struct{}{}))
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func lastError() string {
	return pmemkvErrormsg()
}
