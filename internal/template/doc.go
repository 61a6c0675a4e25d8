// Package template turns a downloaded cloud image into a Proxmox VM template.
//
// A Descriptor carries everything decided before the build: the allocated
// identifier, name, target storage, hardware and network profile, and how the
// default user is provisioned. The Builder turns it into a fixed sequence of
// qm invocations:
//
//	create -> network -> hardware -> console -> disk import -> boot order ->
//	cloud-init drive -> ipconfig -> credentials -> resize -> agent -> tags ->
//	description -> template
//
// Error Handling:
//
// What happens when a step exits non-zero depends on the failure policy. In
// best-effort mode the failure is logged, recorded on the status.Result, and
// the remaining steps still run. In fail-fast mode the first failure is
// returned as a *StepError. A partially created VM is never rolled back.
//
// The downloaded image and the transient SSH key file are removed whatever
// the outcome.
package template
