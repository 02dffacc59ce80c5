// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensor types convgrad operators consume and
// produce.
//
// # Overview
//
// A RawTensor is a reference-counted byte buffer with a shape and an
// element type. Tensors in a framework-canonical layout are stored in
// their own shape; tensors in an engine-native layout are stored flat and
// described by operator layout metadata (see package ops).
//
// # Basic Usage
//
//	filter, _ := tensor.FromSlice([]float32{1, 1, 1, 1}, tensor.Shape{2, 2, 1, 1})
//	data := filter.AsFloat32()  // Type-safe access
//	clone := filter.Clone()     // Shares buffer via reference counting
//
// # Supported Data Types
//
//   - float32, float64 (floating-point)
//   - float16.Float16, bfloat16.BF16 (half precision storage)
//   - int32, int64 (shape vectors)
package tensor
