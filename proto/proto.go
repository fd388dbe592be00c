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

package proto

const (
	// DefaultCacheName is the cluster-wide bootstrap cache record. Routing
	// queries for caches without a recorded topology fall back to it.
	DefaultCacheName = ""

	// SwitchClusterTopology marks a topology id as "switch in progress".
	// A cache whose topology id holds this value is not valid for
	// hash-aware routing.
	SwitchClusterTopology int64 = -2

	HashVersionRingV1  = 1
	HashVersionRingV2  = 2
	HashVersionSegment = 3
)

type IterationState int8

const (
	IterSuccess IterationState = iota
	IterInvalid
)

func (s IterationState) String() string {
	switch s {
	case IterSuccess:
		return "Success"
	case IterInvalid:
		return "InvalidIteration"
	default:
		return "Unknown"
	}
}

// TopologyUpdate carries one topology push from a server. Exactly one of
// the two ownership shapes is populated: ServerHashes+HashSpace for the
// ring versions, SegmentOwners+NumSegments for the segment-table version.
type TopologyUpdate struct {
	CacheName     string
	TopologyId    int64
	NumOwners     int
	HashVersion   int
	ServerHashes  map[string]uint32
	HashSpace     uint32
	SegmentOwners [][]string
	NumSegments   int
	Servers       []string
}
