package config

import "fmt"

// Validate checks a resolved Snapshot against spec §3/§6.2 invariants and
// returns every violation found, not just the first (spec §4.14).
func Validate(snap *Snapshot) []string {
	var errs []string

	names := make(map[string]bool, len(snap.Services))
	for _, svc := range snap.Services {
		if svc.Name == "" {
			errs = append(errs, "service entry missing name")
			continue
		}
		if names[svc.Name] {
			errs = append(errs, fmt.Sprintf("service %q declared more than once", svc.Name))
		}
		names[svc.Name] = true

		if svc.Resources.MemLimitBytes > 0 && svc.Resources.MemReservationBytes > svc.Resources.MemLimitBytes {
			errs = append(errs, fmt.Sprintf("service %q: memReservation exceeds memLimit", svc.Name))
		}
		if svc.Resources.CPULimitMillis > 0 && svc.Resources.CPUReservationMillis > svc.Resources.CPULimitMillis {
			errs = append(errs, fmt.Sprintf("service %q: cpuReservation exceeds cpuLimit", svc.Name))
		}
		if svc.Endpoint.Scheme == "" {
			errs = append(errs, fmt.Sprintf("service %q: endpoint.scheme is required", svc.Name))
		}
	}

	for _, vs := range snap.VirtualServers {
		if vs.Name == "" {
			errs = append(errs, "virtual server entry missing name")
			continue
		}
		for _, member := range vs.Members {
			svcName := member
			if idx := indexOfSlash(member); idx >= 0 {
				svcName = member[:idx]
			}
			if !names[svcName] {
				errs = append(errs, fmt.Sprintf("virtual server %q references unknown service %q", vs.Name, svcName))
			}
		}
	}

	if snap.Router.AdvisorWeight < 0 || snap.Router.AdvisorWeight > 1 {
		errs = append(errs, "router.advisor_weight must be in [0,1]")
	}
	if snap.Router.MinConfidence < 0 || snap.Router.MinConfidence > 1 {
		errs = append(errs, "router.min_confidence must be in [0,1]")
	}
	if snap.WakeHeadroomPct <= 0 || snap.WakeHeadroomPct > 1 {
		errs = append(errs, "wake_headroom_pct must be in (0,1]")
	}

	return errs
}

func indexOfSlash(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
