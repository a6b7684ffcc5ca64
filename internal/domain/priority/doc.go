// Package priority ranks the host process for reclamation.
//
// The host takes the most important rank among everything it hosts:
//
//	foreground          100  a resumed record
//	foreground_service  125  hosted work marked foreground
//	visible             200  a started or paused record
//	service             300  other hosted work
//	background          400  created or stopped records only
//	empty               500  nothing live
//
// Functions here are pure; the controller recomputes the rank after every
// committed transition.
package priority
