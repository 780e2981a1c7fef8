// Package attach adds images to created artifacts.
//
// An upload is first attempted directly against the native REST API of the
// artifact's system. If that fails for any reason the same image is sent
// through the target's upload tool. When both paths fail the outcome says
// so and a warning is logged; attaching never fails the owning step.
//
// Images referenced by URL are fetched once and kept in a short-lived
// [Cache] owned by the [Attacher].
package attach
