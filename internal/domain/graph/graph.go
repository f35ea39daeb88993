// Package graph builds the agent co-membership graph: two agents are linked
// once for every submolt they have both posted in.
package graph

import "github.com/okian/lobstream/internal/domain/types"

const submoltPrefix = "m/"

// orderedSet keeps first-insertion order.
type orderedSet struct {
	items []string
	index map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
}

// Build computes nodes and links. Output order is deterministic and follows
// the order agents and submolts first appear in memberships.
func Build(memberships []types.Membership, agents []types.AgentSummary) types.Graph {
	profiles := make(map[string]types.AgentSummary, len(agents))
	for _, a := range agents {
		profiles[a.Name] = a
	}

	agentOrder := newOrderedSet()
	agentSubmolts := make(map[string]*orderedSet)
	for _, m := range memberships {
		if m.Author == "" || m.Submolt == "" {
			continue
		}
		set, ok := agentSubmolts[m.Author]
		if !ok {
			set = newOrderedSet()
			agentSubmolts[m.Author] = set
			agentOrder.add(m.Author)
		}
		set.add(m.Submolt)
	}

	submoltOrder := newOrderedSet()
	submoltAgents := make(map[string][]string)
	for _, agent := range agentOrder.items {
		for _, s := range agentSubmolts[agent].items {
			submoltOrder.add(s)
			submoltAgents[s] = append(submoltAgents[s], agent)
		}
	}

	type pair struct{ a, b string }
	edgeIndex := make(map[pair]int)
	var links []types.GraphLink
	for _, s := range submoltOrder.items {
		members := submoltAgents[s]
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				key := pair{members[i], members[j]}
				if key.b < key.a {
					key = pair{key.b, key.a}
				}
				idx, ok := edgeIndex[key]
				if !ok {
					idx = len(links)
					edgeIndex[key] = idx
					links = append(links, types.GraphLink{Source: members[i], Target: members[j], Submolts: []string{}})
				}
				links[idx].Weight++
				links[idx].Submolts = append(links[idx].Submolts, submoltPrefix+s)
			}
		}
	}

	connected := newOrderedSet()
	for _, l := range links {
		connected.add(l.Source)
		connected.add(l.Target)
	}

	nodes := make([]types.GraphNode, 0, len(connected.items))
	for _, name := range connected.items {
		p := profiles[name]
		node := types.GraphNode{
			ID:            name,
			Karma:         p.Karma,
			PostCount:     p.PostCount,
			FollowerCount: p.FollowerCount,
			Description:   p.Description,
		}
		if set := agentSubmolts[name]; set != nil && len(set.items) > 0 {
			top := set.items[0]
			node.TopSubmolt = &top
		}
		nodes = append(nodes, node)
	}
	if links == nil {
		links = []types.GraphLink{}
	}

	return types.Graph{
		Nodes: nodes,
		Links: links,
		Meta:  types.GraphMeta{NodeCount: len(nodes), LinkCount: len(links)},
	}
}
