package mapper

import (
	"fmt"

	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
)

// PluginInfoToRuntimePrioritizedMethods maps all PluginInfo from running plugins, into a prioritized list of modules to run per method.
func PluginInfoToRuntimePrioritizedMethods(allPluginInfo []ghostlineplugin.PluginInfo) (ghostlineplugin.RuntimePrioritizedMethods, error) {
	result := make(ghostlineplugin.RuntimePrioritizedMethods)
	methodPriorityBuckets := make(map[string]map[ghostlineplugin.Priority][]*ghostlineplugin.Methods)

	for _, pluginInfo := range allPluginInfo {
		if err := pluginInfo.Validate(); err != nil {
			return nil, fmt.Errorf("error validating plugin configuration: %w", err)
		}

		for method, priority := range pluginInfo.Priorities {
			if _, ok := methodPriorityBuckets[method]; !ok {
				methodPriorityBuckets[method] = make(map[ghostlineplugin.Priority][]*ghostlineplugin.Methods)
			}
			methodPriorityBuckets[method][priority] = append(methodPriorityBuckets[method][priority], pluginInfo.Methods)
		}
	}

	// Flatten buckets into sync and async lists in execution order.
	for method, buckets := range methodPriorityBuckets {
		lists := ghostlineplugin.MethodLists{}
		for priority := ghostlineplugin.PriorityHigh; priority <= ghostlineplugin.PriorityAsync; priority++ {
			if priority < ghostlineplugin.PriorityAsync {
				lists.Sync = append(lists.Sync, buckets[priority]...)
			} else {
				lists.Async = append(lists.Async, buckets[priority]...)
			}
		}
		result[method] = lists
	}

	return result, nil
}
