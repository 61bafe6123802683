package wsapi

// commandTable maps §6's IPC command names to their handler. Built as a
// package-level map rather than a switch so each command's handler can
// live in the file grounded on the component it talks to.
var commandTable = map[string]func(*Connection, ClientFrame){
	"connect_cluster":     handleConnectCluster,
	"discover_contexts":   handleDiscoverContexts,
	"cleanup_channel":     handleCleanupChannel,
	"watch_gvk_with_view": handleWatchGVKWithView,
	"watch_namespaces":    handleWatchNamespaces,
	"kube_stream_podlogs": handleStreamPodLogs,

	"pod_exec_start_session":   handleExecStart,
	"pod_exec_write_stdin":     handleExecWriteStdin,
	"pod_exec_resize_terminal": handleExecResize,
	"pod_exec_abort_session":   handleExecAbort,

	"get_resource_yaml":   handleGetResourceYAML,
	"apply_resource_yaml": handleApplyResourceYAML,
	"delete_resource":     handleDeleteResource,
	"restart_deployment":  handleRestartDeployment,
	"restart_statefulset": handleRestartStatefulSet,

	"list_resource_views":      handleListResourceViews,
	"list_pod_container_names": handleListPodContainerNames,
	"list_secret_keys":         handleListSecretKeys,
	"decode_secret_key":        handleDecodeSecretKey,

	"create_resource_menustack": handleCreateMenuStack,
	"drop_resource_menustack":   handleDropMenuStack,
	"call_menustack_action":     handleCallMenuStackAction,
}
