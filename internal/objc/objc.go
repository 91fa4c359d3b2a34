// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build darwin

// Package objc bridges to the Objective-C runtime through libffi so
// the macOS window layer and the Metal render backend need no cgo.
// Frameworks are loaded from their fixed system paths and driven with
// objc_msgSend.
package objc

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"
)

// ID is an Objective-C object reference (id).
type ID uintptr

// Class is an Objective-C class reference.
type Class uintptr

// SEL is a registered selector.
type SEL uintptr

var (
	objcLib unsafe.Pointer

	symMsgSend     unsafe.Pointer
	symGetClass    unsafe.Pointer
	symRegisterSel unsafe.Pointer

	cifGetClass    types.CallInterface
	cifRegisterSel types.CallInterface

	selectors sync.Map // selector name -> SEL

	initOnce sync.Once
	initErr  error
)

// Init loads the Objective-C runtime. Must be called before any other
// function in this package. Safe to call from both the device layer
// and the render backend; the work happens once.
func Init() error {
	initOnce.Do(func() { initErr = load() })
	return initErr
}

func load() error {
	var err error
	if objcLib, err = ffi.LoadLibrary("/usr/lib/libobjc.A.dylib"); err != nil {
		return fmt.Errorf("objc: load libobjc: %w", err)
	}
	if symMsgSend, err = ffi.GetSymbol(objcLib, "objc_msgSend"); err != nil {
		return fmt.Errorf("objc: objc_msgSend not found: %w", err)
	}
	if symGetClass, err = ffi.GetSymbol(objcLib, "objc_getClass"); err != nil {
		return fmt.Errorf("objc: objc_getClass not found: %w", err)
	}
	if symRegisterSel, err = ffi.GetSymbol(objcLib, "sel_registerName"); err != nil {
		return fmt.Errorf("objc: sel_registerName not found: %w", err)
	}
	err = ffi.PrepareCallInterface(&cifGetClass, types.DefaultCall,
		types.PointerTypeDescriptor,
		[]*types.TypeDescriptor{types.PointerTypeDescriptor})
	if err != nil {
		return fmt.Errorf("objc: prepare objc_getClass: %w", err)
	}
	err = ffi.PrepareCallInterface(&cifRegisterSel, types.DefaultCall,
		types.PointerTypeDescriptor,
		[]*types.TypeDescriptor{types.PointerTypeDescriptor})
	if err != nil {
		return fmt.Errorf("objc: prepare sel_registerName: %w", err)
	}
	return nil
}

// LoadFramework loads a system framework, eg:
// "/System/Library/Frameworks/Metal.framework/Metal".
func LoadFramework(path string) (unsafe.Pointer, error) {
	lib, err := ffi.LoadLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("objc: load framework %s: %w", path, err)
	}
	return lib, nil
}

// Symbol resolves a C symbol from a loaded framework.
func Symbol(lib unsafe.Pointer, name string) (unsafe.Pointer, error) {
	sym, err := ffi.GetSymbol(lib, name)
	if err != nil {
		return nil, fmt.Errorf("objc: symbol %s: %w", name, err)
	}
	return sym, nil
}

// CallFn calls a plain C function returning a pointer-sized value,
// eg: MTLCreateSystemDefaultDevice.
func CallFn(sym unsafe.Pointer, args ...Arg) ID {
	argTypes := make([]*types.TypeDescriptor, len(args))
	argPtrs := make([]unsafe.Pointer, len(args))
	for i, a := range args {
		argTypes[i] = a.typ
		argPtrs[i] = a.ptr
	}
	cif := &types.CallInterface{}
	if err := ffi.PrepareCallInterface(cif, types.DefaultCall,
		types.PointerTypeDescriptor, argTypes); err != nil {
		return 0
	}
	var result ID
	_ = ffi.CallFunction(cif, sym, unsafe.Pointer(&result), argPtrs)
	runtime.KeepAlive(args)
	return result
}

// GetClass returns the class for a name, zero when unknown.
func GetClass(name string) Class {
	cname := append([]byte(name), 0)
	ptr := uintptr(unsafe.Pointer(&cname[0]))
	var result Class
	args := [1]unsafe.Pointer{unsafe.Pointer(&ptr)}
	_ = ffi.CallFunction(&cifGetClass, symGetClass, unsafe.Pointer(&result), args[:])
	runtime.KeepAlive(cname)
	return result
}

// Sel registers and caches a selector.
func Sel(name string) SEL {
	if cached, ok := selectors.Load(name); ok {
		return cached.(SEL)
	}
	cname := append([]byte(name), 0)
	ptr := uintptr(unsafe.Pointer(&cname[0]))
	var result SEL
	args := [1]unsafe.Pointer{unsafe.Pointer(&ptr)}
	_ = ffi.CallFunction(&cifRegisterSel, symRegisterSel, unsafe.Pointer(&result), args[:])
	runtime.KeepAlive(cname)
	selectors.Store(name, result)
	return result
}

// =============================================================================
// message sends

// Arg is one typed objc_msgSend argument.
type Arg struct {
	typ       *types.TypeDescriptor
	ptr       unsafe.Pointer
	keepAlive any
}

// P wraps a pointer-sized argument (object, selector, raw pointer).
func P(v uintptr) Arg {
	p := v
	return Arg{typ: types.PointerTypeDescriptor, ptr: unsafe.Pointer(&p), keepAlive: &p}
}

// U64 wraps an unsigned integer argument (NSUInteger).
func U64(v uint64) Arg {
	p := v
	return Arg{typ: types.UInt64TypeDescriptor, ptr: unsafe.Pointer(&p), keepAlive: &p}
}

// I64 wraps a signed integer argument (NSInteger).
func I64(v int64) Arg {
	p := v
	return Arg{typ: types.SInt64TypeDescriptor, ptr: unsafe.Pointer(&p), keepAlive: &p}
}

// B wraps a BOOL argument.
func B(v bool) Arg {
	var p uint8
	if v {
		p = 1
	}
	return Arg{typ: types.UInt8TypeDescriptor, ptr: unsafe.Pointer(&p), keepAlive: &p}
}

// F64 wraps a CGFloat argument.
func F64(v float64) Arg {
	p := v
	return Arg{typ: types.DoubleTypeDescriptor, ptr: unsafe.Pointer(&p), keepAlive: &p}
}

// Struct wraps a by-value struct argument described by td.
func Struct[T any](v T, td *types.TypeDescriptor) Arg {
	p := v
	return Arg{typ: td, ptr: unsafe.Pointer(&p), keepAlive: &p}
}

// send performs objc_msgSend with an arbitrary return type.
func send(obj ID, sel SEL, ret *types.TypeDescriptor, retPtr unsafe.Pointer, args ...Arg) {
	if obj == 0 || sel == 0 {
		return
	}
	argTypes := make([]*types.TypeDescriptor, 2+len(args))
	argTypes[0] = types.PointerTypeDescriptor
	argTypes[1] = types.PointerTypeDescriptor
	for i, a := range args {
		argTypes[2+i] = a.typ
	}
	cif := &types.CallInterface{}
	if err := ffi.PrepareCallInterface(cif, types.DefaultCall, ret, argTypes); err != nil {
		return
	}
	self := uintptr(obj)
	cmd := uintptr(sel)
	argPtrs := make([]unsafe.Pointer, 2+len(args))
	argPtrs[0] = unsafe.Pointer(&self)
	argPtrs[1] = unsafe.Pointer(&cmd)
	for i, a := range args {
		argPtrs[2+i] = a.ptr
	}
	_ = ffi.CallFunction(cif, symMsgSend, retPtr, argPtrs)
	runtime.KeepAlive(args)
}

// Send messages obj returning an object or pointer-sized value.
func Send(obj ID, sel SEL, args ...Arg) ID {
	var result ID
	send(obj, sel, types.PointerTypeDescriptor, unsafe.Pointer(&result), args...)
	return result
}

// SendU64 messages obj returning an NSUInteger.
func SendU64(obj ID, sel SEL, args ...Arg) uint64 {
	var result uint64
	send(obj, sel, types.UInt64TypeDescriptor, unsafe.Pointer(&result), args...)
	return result
}

// SendB messages obj returning a BOOL.
func SendB(obj ID, sel SEL, args ...Arg) bool {
	var result uint8
	send(obj, sel, types.UInt8TypeDescriptor, unsafe.Pointer(&result), args...)
	return result != 0
}

// SendF64 messages obj returning a double.
func SendF64(obj ID, sel SEL, args ...Arg) float64 {
	var result float64
	send(obj, sel, types.DoubleTypeDescriptor, unsafe.Pointer(&result), args...)
	return result
}

// SendStruct messages obj returning a small by-value struct into out.
func SendStruct(obj ID, sel SEL, td *types.TypeDescriptor, out unsafe.Pointer, args ...Arg) {
	send(obj, sel, td, out, args...)
}

// SendClass messages a class object.
func SendClass(cls Class, sel SEL, args ...Arg) ID {
	return Send(ID(cls), sel, args...)
}

// =============================================================================
// object lifetime and strings

// Retain increments an object's reference count.
func Retain(obj ID) { Send(obj, Sel("retain")) }

// Release decrements an object's reference count.
func Release(obj ID) { Send(obj, Sel("release")) }

// NewAutoreleasePool pushes a fresh autorelease pool. Drain it before
// leaving the scope that created it.
func NewAutoreleasePool() ID {
	pool := SendClass(GetClass("NSAutoreleasePool"), Sel("alloc"))
	return Send(pool, Sel("init"))
}

// Drain releases the pool and everything autoreleased into it.
func Drain(pool ID) { Send(pool, Sel("drain")) }

// NSString builds an NSString from a Go string. Release it after use.
func NSString(s string) ID {
	bytes := append([]byte(s), 0)
	str := SendClass(GetClass("NSString"), Sel("alloc"))
	out := Send(str, Sel("initWithUTF8String:"), P(uintptr(unsafe.Pointer(&bytes[0]))))
	runtime.KeepAlive(bytes)
	return out
}

// GoString copies an NSString's UTF-8 bytes into a Go string.
func GoString(str ID) string {
	if str == 0 {
		return ""
	}
	p := Send(str, Sel("UTF8String"))
	if p == 0 {
		return ""
	}
	n := int(SendU64(str, Sel("lengthOfBytesUsingEncoding:"), U64(4))) // NSUTF8StringEncoding
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

// =============================================================================
// common struct descriptors

// CGPoint, CGSize, CGRect and friends passed by value.
var (
	CGSizeType = &types.TypeDescriptor{
		Kind: types.StructType,
		Members: []*types.TypeDescriptor{
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
		},
	}
	CGRectType = &types.TypeDescriptor{
		Kind: types.StructType,
		Members: []*types.TypeDescriptor{
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
		},
	}
	MTLClearColorType = &types.TypeDescriptor{
		Kind: types.StructType,
		Members: []*types.TypeDescriptor{
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
		},
	}
	MTLViewportType = &types.TypeDescriptor{
		Kind: types.StructType,
		Members: []*types.TypeDescriptor{
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
			types.DoubleTypeDescriptor,
		},
	}
	MTLScissorRectType = &types.TypeDescriptor{
		Kind: types.StructType,
		Members: []*types.TypeDescriptor{
			types.UInt64TypeDescriptor,
			types.UInt64TypeDescriptor,
			types.UInt64TypeDescriptor,
			types.UInt64TypeDescriptor,
		},
	}
	MTLOriginType = &types.TypeDescriptor{
		Kind: types.StructType,
		Members: []*types.TypeDescriptor{
			types.UInt64TypeDescriptor,
			types.UInt64TypeDescriptor,
			types.UInt64TypeDescriptor,
		},
	}
	MTLSizeType = &types.TypeDescriptor{
		Kind: types.StructType,
		Members: []*types.TypeDescriptor{
			types.UInt64TypeDescriptor,
			types.UInt64TypeDescriptor,
			types.UInt64TypeDescriptor,
		},
	}
	NSRangeType = &types.TypeDescriptor{
		Kind: types.StructType,
		Members: []*types.TypeDescriptor{
			types.UInt64TypeDescriptor,
			types.UInt64TypeDescriptor,
		},
	}
)

// CGRect is the Go mirror of the Core Graphics rect.
type CGRect struct {
	X, Y, W, H float64
}
