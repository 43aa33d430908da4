/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package clock provides the Adapter interface used to discipline the host
system clock, plus the platform backends that implement it.

On Linux, LinuxAdapter wraps the CLOCK_ADJTIME syscall against
CLOCK_REALTIME: AdjustFrequency slews the clock's frequency offset,
StepWall jumps the wall clock by a fixed delta, and SetSynchronized sets
the kernel's TIME_OK status once a source is trusted.

On Windows, WindowsAdapter reaches the same two primitives through
SetSystemTimeAdjustment (frequency) and SetSystemTimePreciseAsFileTime
(phase steps).

Callers never mix the two operations on the same caller: the rate servo
only ever calls AdjustFrequency, the phase tracker only ever calls
StepWall.
*/
package clock
