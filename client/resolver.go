package client

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/resolver"
)

const lbResolverSchema = "static"

func init() {
	resolver.Register(&LBBuilder{})
}

// LBBuilder resolves a comma separated bootstrap server list, used for
// the initial cluster contact before any topology push arrives.
type LBBuilder struct{}

func (lb *LBBuilder) Build(target resolver.Target, cc resolver.ClientConn,
	opts resolver.BuildOptions) (resolver.Resolver, error,
) {
	endpoints := strings.Split(target.Endpoint(), ",")

	r := &LBResolver{
		endpoints: endpoints,
		cc:        cc,
	}
	r.ResolveNow(resolver.ResolveNowOptions{})
	return r, nil
}

func (lb *LBBuilder) Scheme() string {
	return lbResolverSchema
}

type LBResolver struct {
	endpoints []string
	cc        resolver.ClientConn
}

func (lr *LBResolver) ResolveNow(opts resolver.ResolveNowOptions) {
	var addresses []resolver.Address
	for i, addr := range lr.endpoints {
		addresses = append(addresses, resolver.Address{
			Addr:       addr,
			ServerName: fmt.Sprintf("bootstrap-%d", i+1),
		})
	}

	newState := resolver.State{
		Addresses: addresses,
	}
	lr.cc.UpdateState(newState)
}

func (lr *LBResolver) Close() {}

// BootstrapTarget prefixes a plain address list with the static resolver
// schema when the caller has not done so already.
func BootstrapTarget(addresses string) string {
	if strings.HasPrefix(addresses, lbResolverSchema+":///") {
		return addresses
	}
	return lbResolverSchema + ":///" + addresses
}
