/*
Package sandbox renders untrusted, model-generated markup inside an
isolated execution context with no access to host capabilities.

# Architecture

Two halves communicate only through an asynchronous message link carrying
encoded protocol frames, FIFO per direction, no shared memory:

 1. Controller: host side. Sanitizes content before it crosses the link,
    assigns correlation ids, matches responses to waiting callers, enforces
    the render timeout, and owns teardown.
 2. Executor: isolated side. Owns the single output document, renders
    sanitized markup, runs extracted script bodies against a hardened goja
    VM, measures content height under a fixed box model, and reports back.

# Security Model

Markup is reduced to a fixed tag/attribute profile before it is sent:
strict for static rendering, interactive for renders that carry scripts.
Script bodies travel out-of-band as an ordered list and execute only inside
the VM, never inlined into markup and never through dynamic evaluation of
host code. The VM has no require/process/module, no timers, and a
per-script interrupt deadline. One failing script never stops the rest.

# Lifecycle

The executor announces readiness exactly once; callers must WaitForReady
before rendering. Each render resolves with the measured height or fails
with ErrRenderTimeout after the configured deadline, in which case the
pending entry is removed and a late completion is discarded. Destroy is
idempotent: it detaches the listener, stops the executor, and drops all
pending requests.
*/
package sandbox
