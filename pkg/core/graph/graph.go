// Package graph 把快照中的描述符森林转换为有向无环图，便于统计与可视化
package graph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/begmaroman/go-dag"

	"github.com/LENAX/task-visualizer/pkg/core/describe"
)

// Node 图节点（对外导出）
// 同一个任务出现在多个父任务下时只对应一个节点
type Node struct {
	Key       string   `json:"key"`
	TaskID    int64    `json:"id"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	IsRunning bool     `json:"isRunning"`
	Depth     int      `json:"depth"`
	Parents   []string `json:"parents"`
	Children  []string `json:"children"`
}

// Edge 父任务指向子任务的边
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph 快照图
type Graph struct {
	Nodes    []*Node  `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Roots    []string `json:"roots"`
	Leaves   []string `json:"leaves"`
	MaxDepth int      `json:"maxDepth"`
	Running  int      `json:"running"`
}

// FromPayload 从快照JSON构建图
func FromPayload(payload string) (*Graph, error) {
	forest, err := describe.UnmarshalForest(payload)
	if err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}
	return Build(forest)
}

// Build 从描述符森林构建图
func Build(forest []*describe.Descriptor) (*Graph, error) {
	// 顶点值只存Key，节点在构建过程中还会被修改，不能参与go-dag的哈希
	d := dag.NewDAG[string]()
	nodes := make(map[string]*Node)
	edges := make(map[Edge]struct{})
	var edgeList []Edge

	var add func(desc *describe.Descriptor, path string) (string, error)
	add = func(desc *describe.Descriptor, path string) (string, error) {
		key := nodeKey(desc, path)
		n, exists := nodes[key]
		if !exists {
			n = &Node{Key: key, TaskID: desc.ID, Name: desc.Name, Kind: desc.Kind}
			if err := d.AddVertexByID(key, key); err != nil {
				return "", fmt.Errorf("添加节点失败: Key=%s, Error=%w", key, err)
			}
			nodes[key] = n
		}
		n.IsRunning = n.IsRunning || desc.IsRunning

		for i, child := range desc.SubCommands {
			childKey, err := add(child, fmt.Sprintf("%s/%d", path, i))
			if err != nil {
				return "", err
			}
			e := Edge{From: key, To: childKey}
			if _, dup := edges[e]; dup {
				continue
			}
			if err := d.AddEdge(key, childKey); err != nil {
				return "", fmt.Errorf("添加边失败: %s -> %s, Error=%w", key, childKey, err)
			}
			edges[e] = struct{}{}
			edgeList = append(edgeList, e)
		}
		return key, nil
	}

	for i, root := range forest {
		if root == nil {
			continue
		}
		if _, err := add(root, strconv.Itoa(i)); err != nil {
			return nil, err
		}
	}

	g := &Graph{Edges: edgeList}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	g.Roots = sortedKeys(d.GetRoots())
	g.Leaves = sortedKeys(d.GetLeaves())

	for key, n := range nodes {
		parents, err := d.GetParents(key)
		if err != nil {
			return nil, err
		}
		children, err := d.GetChildren(key)
		if err != nil {
			return nil, err
		}
		n.Parents = sortedKeys(parents)
		n.Children = sortedKeys(children)
	}

	depths := make(map[string]int, len(nodes))
	var depthOf func(key string) int
	depthOf = func(key string) int {
		if v, ok := depths[key]; ok {
			return v
		}
		depth := 0
		n, ok := nodes[key]
		if !ok {
			return 0
		}
		for _, p := range n.Parents {
			if pd := depthOf(p) + 1; pd > depth {
				depth = pd
			}
		}
		depths[key] = depth
		return depth
	}

	g.Nodes = make([]*Node, 0, len(nodes))
	for key, n := range nodes {
		n.Depth = depthOf(key)
		if n.Depth > g.MaxDepth {
			g.MaxDepth = n.Depth
		}
		if n.IsRunning {
			g.Running++
		}
		g.Nodes = append(g.Nodes, n)
	}
	sort.Slice(g.Nodes, func(i, j int) bool {
		if g.Nodes[i].Depth != g.Nodes[j].Depth {
			return g.Nodes[i].Depth < g.Nodes[j].Depth
		}
		return g.Nodes[i].Key < g.Nodes[j].Key
	})
	return g, nil
}

// Node 按Key查找节点
func (g *Graph) Node(key string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.Key == key {
			return n, true
		}
	}
	return nil, false
}

// nodeKey 有标识的描述符按标识合并，无标识的按所在路径区分
func nodeKey(desc *describe.Descriptor, path string) string {
	if desc.ID != 0 {
		return strconv.FormatInt(desc.ID, 10)
	}
	return "p" + path
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
