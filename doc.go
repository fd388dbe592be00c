/*
 *
 * Copyright 2023 GridKV authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# GridKV: segment-routed data-grid core

GridKV is the routing and iteration core of a distributed in-memory data
grid. The keyspace of every cache is split into fixed segments; segments
are the unit of ownership on the servers and the unit of progress
tracking during distributed iteration.

## Client side

* router.TopologyInfo - per-cache routing table: server list, consistent
  hash snapshot and topology id, replaced atomically on every topology
  push from the cluster.

* router.GridClient - picks the owner server per key through the
  consistent hash, falling back to round robin while a cache has no
  valid topology, and pools one grpc connection per server.

* common/hashing - the pluggable consistent-hash shapes: the legacy
  hash ring (versions 1 and 2) and the constant-time segment table
  (version 3). Unknown pushed versions degrade routing instead of
  failing.

## Server side

* server.Service - hosts named local data views (store + hash + owned
  segments) and the iteration surface over them.

* server/iteration.Registry - resumable cursors over a view's entry
  sequence: bounded batches, named filter/converter factories, and a
  segment-completion report per batch so remote callers can resume
  correctly across rebalancing.

* server/stream - lazy, segment/key-filtered entry sequences over a
  local store, drained segment by segment.

* server/store - the persistence collaborators: a btree-ordered memory
  store and a rocksdb-backed store, both full-scan capable.

## Building Blocks

* gRPC
* Rocksdb
* Prometheus

*/

package gridkv
