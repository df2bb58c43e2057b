// Package actions implements the gatekeeper steps: merging an approved
// change into its release branch, upmerging that branch through the later
// releases into the trunk, and pushing every branch a run touched.
//
// Steps take a runtime.Context for the SCM, the release naming and the
// pending push registry. A run id ties the steps of one build together.
package actions
