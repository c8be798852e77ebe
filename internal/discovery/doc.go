// Package discovery announces and finds provisioning portals over mDNS.
//
// A running server registers itself as an "_http._tcp" service so a phone
// or laptop joined to the setup access point can reach it by name. The TXT
// records identify the service among other HTTP services:
//
//	svc=wifiprov
//	path=/ws
//	version=1.2.0
//
// # Usage Example
//
//	ad, err := discovery.Advertise(discovery.Advertisement{Port: 8080, Version: version.Version})
//	if err != nil {
//	    return err
//	}
//	defer ad.Shutdown()
//
//	portal, err := discovery.NewScanner().First(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(portal.WebSocketURL())
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Client and portal must be on the same network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
