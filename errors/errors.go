// Copyright 2023 The GridKV Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package errors

import "errors"

var (
	ErrViewDoesNotExist = errors.New("the cache view does not exist")

	ErrFilterFactoryNotFound = errors.New("filter converter factory not found")

	ErrCorruptedData    = errors.New("corrupted wire data")
	ErrUnsupportedParam = errors.New("unsupported parameter type")

	ErrIterationInterrupted = errors.New("iteration interrupted")
	ErrTooManyIterations    = errors.New("too many concurrent iterations")

	ErrNoServersAvailable = errors.New("no servers available")

	ErrStoreClosed = errors.New("store is closed")

	ErrKeyDoesNotExist = errors.New("key does not exist")
)
