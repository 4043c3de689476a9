package template

// FindResource, stack ağacında verilen kimliği arar.
func FindResource(stacks []*Stack, id ResourceID) (*Resource, bool) {
	for _, stack := range stacks {
		if res, ok := findInStack(stack, id); ok {
			return res, true
		}
	}
	return nil, false
}

func findInStack(stack *Stack, id ResourceID) (*Resource, bool) {
	if stack.Path == id.StackPath {
		for _, res := range stack.Resources {
			if res.ID == id {
				return res, true
			}
		}
		return nil, false
	}
	for _, child := range stack.Children {
		if res, ok := findInStack(child, id); ok {
			return res, true
		}
	}
	return nil, false
}

// AllResourceIDs, ağaçtaki tüm kaynak kimliklerini kararlı sırada döner.
// İç içe stack kaynaklarının kendileri de listeye dahildir; controller'lar
// izlenemeyen tipleri factory üzerinden eler.
func AllResourceIDs(stacks []*Stack) []ResourceID {
	var ids []ResourceID
	for _, stack := range stacks {
		ids = append(ids, stackResourceIDs(stack)...)
	}
	return ids
}

func stackResourceIDs(stack *Stack) []ResourceID {
	var ids []ResourceID
	for _, res := range stack.Resources {
		ids = append(ids, res.ID)
	}
	for _, child := range stack.Children {
		ids = append(ids, stackResourceIDs(child)...)
	}
	return ids
}

// FindStack, ağaçta verilen stack yoluna sahip stack'i arar ("" kök demektir).
func FindStack(stacks []*Stack, path string) (*Stack, bool) {
	for _, stack := range stacks {
		if found, ok := findStackIn(stack, path); ok {
			return found, true
		}
	}
	return nil, false
}

func findStackIn(stack *Stack, path string) (*Stack, bool) {
	if stack.Path == path {
		return stack, true
	}
	for _, child := range stack.Children {
		if found, ok := findStackIn(child, path); ok {
			return found, true
		}
	}
	return nil, false
}

// RootHosts, kök stack'in host listesini döner. Sync modunda deployer
// hedef sunucuyu buradan seçer.
func RootHosts(stacks []*Stack) []Host {
	if len(stacks) == 0 {
		return nil
	}
	return stacks[0].Hosts
}
